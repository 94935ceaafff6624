package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

func TestApplicationEventRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &domain.Application{ID: 42, JobID: 100, UserID: 7, Status: domain.StatusSubmitted}

	ev := NewApplicationEvent(TypeApplicationCreated, a, at)
	assert.Equal(t, "100", ev.PartitionKey())
	assert.Equal(t, at.UnixMilli(), ev.Timestamp)

	body, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeApplicationEvent(body)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeApplicationEventRejectsUnknownType(t *testing.T) {
	body, _ := json.Marshal(ApplicationEvent{EventType: "APPLICATION_EXPLODED", ApplicationID: 1})
	_, err := DecodeApplicationEvent(body)
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err), "unknown event types never retry")

	_, err = DecodeApplicationEvent([]byte("{"))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}

func TestJobEventRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j := &domain.Job{ID: 9, EmployerID: 3, Status: domain.JobActive}

	ev := NewJobEvent(TypeJobStatusChanged, j, at)
	assert.Equal(t, "9", ev.PartitionKey())

	body, err := json.Marshal(ev)
	require.NoError(t, err)
	got, err := DecodeJobEvent(body)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeJobEventRejectsUnknownType(t *testing.T) {
	body, _ := json.Marshal(JobEvent{EventType: "JOB_VANISHED"})
	_, err := DecodeJobEvent(body)
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}
