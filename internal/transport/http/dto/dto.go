// Package dto declares the request bodies and their validation rules.
package dto

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

var validate = validator.New()

// Validate runs struct validation and converts failures to the VALIDATION
// error shape with per-field messages.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ErrValidation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		fields[name] = "failed " + fe.Tag() + " validation"
	}
	return domain.ErrValidationFields("invalid request body", fields)
}

type CreateApplication struct {
	JobID       int64  `json:"jobId" validate:"required,gt=0"`
	CoverLetter string `json:"coverLetter" validate:"max=10000"`
	ResumeURL   string `json:"resumeUrl" validate:"omitempty,url,max=2000"`
}

type ChangeApplicationStatus struct {
	Status string `json:"status" validate:"required"`
}

type CreateJob struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=20000"`
	Location    string     `json:"location" validate:"max=200"`
	Deadline    *time.Time `json:"applicationDeadline"`
}

type UpdateJob struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=20000"`
	Location    string     `json:"location" validate:"max=200"`
	Deadline    *time.Time `json:"applicationDeadline"`
}

type ChangeJobStatus struct {
	Status string `json:"status" validate:"required"`
}

type SaveProfile struct {
	FullName  string `json:"fullName" validate:"max=200"`
	Headline  string `json:"headline" validate:"max=500"`
	Location  string `json:"location" validate:"max=200"`
	ResumeURL string `json:"resumeUrl" validate:"omitempty,url,max=2000"`
	Email     string `json:"email" validate:"omitempty,email,max=320"`
	Phone     string `json:"phone" validate:"max=32"`
	PushToken string `json:"pushToken" validate:"max=512"`
}
