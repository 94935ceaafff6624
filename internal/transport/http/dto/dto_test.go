package dto

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var ae *domain.AppError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, domain.CodeValidation, ae.Code)
	return ae.FieldErrors
}

func TestCreateApplicationValidation(t *testing.T) {
	assert.NoError(t, Validate(CreateApplication{JobID: 100, CoverLetter: "hi"}))

	fields := fieldErrors(t, Validate(CreateApplication{}))
	assert.Contains(t, fields, "jobID")

	fields = fieldErrors(t, Validate(CreateApplication{JobID: 100, ResumeURL: "not a url"}))
	assert.Contains(t, fields, "resumeURL")

	err := Validate(CreateApplication{JobID: 100, CoverLetter: strings.Repeat("x", 10001)})
	assert.Contains(t, fieldErrors(t, err), "coverLetter")
}

func TestCreateJobValidation(t *testing.T) {
	assert.NoError(t, Validate(CreateJob{Title: "Backend engineer"}))

	fields := fieldErrors(t, Validate(CreateJob{}))
	assert.Contains(t, fields, "title")

	err := Validate(CreateJob{Title: strings.Repeat("x", 201)})
	assert.Contains(t, fieldErrors(t, err), "title")
}

func TestSaveProfileValidation(t *testing.T) {
	assert.NoError(t, Validate(SaveProfile{Email: "user@example.com", Phone: "+15550100"}))
	assert.NoError(t, Validate(SaveProfile{}), "all profile fields are optional")

	err := Validate(SaveProfile{Email: "not-an-email"})
	assert.Contains(t, fieldErrors(t, err), "email")
}

func TestChangeStatusValidation(t *testing.T) {
	assert.NoError(t, Validate(ChangeApplicationStatus{Status: "UNDER_REVIEW"}))
	assert.Error(t, Validate(ChangeApplicationStatus{}))
	assert.Error(t, Validate(ChangeJobStatus{}))
}
