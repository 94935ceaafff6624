package domain

import (
	"strings"
	"time"
)

type JobStatus string

const (
	JobDraft   JobStatus = "DRAFT"
	JobActive  JobStatus = "ACTIVE"
	JobPaused  JobStatus = "PAUSED"
	JobClosed  JobStatus = "CLOSED"
	JobExpired JobStatus = "EXPIRED"
)

// jobTransitions mirrors the job lifecycle. EXPIRED is reachable only from
// ACTIVE and only via the scheduled sweep, which is enforced at the service
// layer (Expire below), not here.
var jobTransitions = map[JobStatus][]JobStatus{
	JobDraft:  {JobActive},
	JobActive: {JobPaused, JobClosed, JobExpired},
	JobPaused: {JobActive, JobClosed},
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobDraft, JobActive, JobPaused, JobClosed, JobExpired:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobClosed || s == JobExpired
}

func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Job struct {
	ID          int64
	EmployerID  int64
	Title       string
	Description string
	Location    string
	Status      JobStatus

	ApplicationDeadline *time.Time

	// Denormalized counters, maintained by consumers and the read path.
	ViewCount        int64
	ApplicationCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJob(employerID int64, title, description, location string, deadline *time.Time, now time.Time) (*Job, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	location = strings.TrimSpace(location)

	fields := map[string]string{}
	if employerID <= 0 {
		fields["employerId"] = "must be a positive id"
	}
	if title == "" || len(title) > 200 {
		fields["title"] = "is required and must be <= 200 chars"
	}
	if len(description) > 20000 {
		fields["description"] = "must be <= 20000 chars"
	}
	if len(fields) > 0 {
		return nil, ErrValidationFields("invalid job", fields)
	}

	var d *time.Time
	if deadline != nil {
		u := deadline.UTC()
		d = &u
	}

	return &Job{
		EmployerID:          employerID,
		Title:               title,
		Description:         description,
		Location:            location,
		Status:              JobDraft,
		ApplicationDeadline: d,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}, nil
}

func (j *Job) TransitionTo(to JobStatus, now time.Time) error {
	if !to.Valid() {
		return ErrValidation("unknown status: " + string(to))
	}
	if to == JobExpired {
		// Only the deadline sweep may expire a job.
		return ErrInvalidTransition("EXPIRED is set by the deadline sweep only")
	}
	if !j.Status.CanTransition(to) {
		return ErrInvalidTransition(string(j.Status) + " -> " + string(to) + " is not allowed")
	}
	j.Status = to
	j.UpdatedAt = now.UTC()
	return nil
}

// Expire is called by the scheduled sweep when applicationDeadline < today.
func (j *Job) Expire(now time.Time) error {
	if !j.Status.CanTransition(JobExpired) {
		return ErrInvalidTransition(string(j.Status) + " -> EXPIRED is not allowed")
	}
	if j.ApplicationDeadline == nil || !j.ApplicationDeadline.Before(startOfDay(now)) {
		return ErrInvalidTransition("job deadline has not passed")
	}
	j.Status = JobExpired
	j.UpdatedAt = now.UTC()
	return nil
}

// AcceptsApplications reports whether the job may receive new applications.
func (j *Job) AcceptsApplications(now time.Time) bool {
	if j.Status != JobActive {
		return false
	}
	if j.ApplicationDeadline != nil && j.ApplicationDeadline.Before(startOfDay(now)) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
