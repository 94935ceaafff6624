package domain

import (
	"strings"
	"time"
)

type ApplicationStatus string

const (
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusInterview   ApplicationStatus = "INTERVIEW"
	StatusOffered     ApplicationStatus = "OFFERED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
)

// applicationTransitions is the single source of truth for the application
// lifecycle. REJECTED and WITHDRAWN are terminal (no entry).
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusSubmitted:   {StatusUnderReview, StatusRejected, StatusWithdrawn},
	StatusUnderReview: {StatusShortlisted, StatusRejected, StatusWithdrawn},
	StatusShortlisted: {StatusInterview, StatusRejected, StatusWithdrawn},
	StatusInterview:   {StatusOffered, StatusRejected, StatusWithdrawn},
	StatusOffered:     {StatusWithdrawn},
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusShortlisted,
		StatusInterview, StatusOffered, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

func (s ApplicationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusWithdrawn
}

// CanTransition is total over all (from, to) pairs.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	for _, next := range applicationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Application struct {
	ID          int64
	UserID      int64
	JobID       int64
	Status      ApplicationStatus
	CoverLetter string
	ResumeURL   string
	Notes       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const maxCoverLetterLen = 10000

// NewApplication validates input and returns a SUBMITTED application.
// (userID, jobID) uniqueness is enforced by the repository.
func NewApplication(userID, jobID int64, coverLetter, resumeURL string, now time.Time) (*Application, error) {
	coverLetter = strings.TrimSpace(coverLetter)
	resumeURL = strings.TrimSpace(resumeURL)

	fields := map[string]string{}
	if userID <= 0 {
		fields["userId"] = "must be a positive id"
	}
	if jobID <= 0 {
		fields["jobId"] = "must be a positive id"
	}
	if len(coverLetter) > maxCoverLetterLen {
		fields["coverLetter"] = "must be <= 10000 chars"
	}
	if len(fields) > 0 {
		return nil, ErrValidationFields("invalid application", fields)
	}

	return &Application{
		UserID:      userID,
		JobID:       jobID,
		Status:      StatusSubmitted,
		CoverLetter: coverLetter,
		ResumeURL:   resumeURL,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// TransitionTo moves the application to the target status or fails with
// INVALID_STATUS_TRANSITION.
func (a *Application) TransitionTo(to ApplicationStatus, now time.Time) error {
	if !to.Valid() {
		return ErrValidation("unknown status: " + string(to))
	}
	if !a.Status.CanTransition(to) {
		return ErrInvalidTransition(string(a.Status) + " -> " + string(to) + " is not allowed")
	}
	a.Status = to
	a.UpdatedAt = now.UTC()
	return nil
}

// Withdraw is the applicant-initiated terminal move.
func (a *Application) Withdraw(now time.Time) error {
	return a.TransitionTo(StatusWithdrawn, now)
}
