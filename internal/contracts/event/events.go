package event

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

// Logical topics. Partition keys: application/job events are keyed by jobId
// so per-aggregate order holds; retries are keyed by userId so retries for a
// single recipient stay ordered.
const (
	TopicApplicationCreated = "application.created"
	TopicJobLifecycle       = "job.lifecycle"
	TopicNotificationRetry  = "notification.retry"
)

// Application event types.
const (
	TypeApplicationCreated       = "APPLICATION_CREATED"
	TypeApplicationStatusChanged = "APPLICATION_STATUS_CHANGED"
	TypeApplicationWithdrawn     = "APPLICATION_WITHDRAWN"
)

// Job event types.
const (
	TypeJobCreated       = "JOB_CREATED"
	TypeJobUpdated       = "JOB_UPDATED"
	TypeJobStatusChanged = "JOB_STATUS_CHANGED"
)

// ApplicationEvent is the wire shape for everything on application.created.
type ApplicationEvent struct {
	EventType     string         `json:"eventType"`
	ApplicationID int64          `json:"applicationId"`
	JobID         int64          `json:"jobId"`
	UserID        int64          `json:"userId"`
	Status        string         `json:"status"`
	Timestamp     int64          `json:"timestamp"` // epoch millis
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PartitionKey is the stringified jobId per the ordering contract.
func (e ApplicationEvent) PartitionKey() string {
	return strconv.FormatInt(e.JobID, 10)
}

func NewApplicationEvent(eventType string, a *domain.Application, at time.Time) ApplicationEvent {
	return ApplicationEvent{
		EventType:     eventType,
		ApplicationID: a.ID,
		JobID:         a.JobID,
		UserID:        a.UserID,
		Status:        string(a.Status),
		Timestamp:     at.UTC().UnixMilli(),
	}
}

// JobEvent is the wire shape for everything on job.lifecycle.
type JobEvent struct {
	EventType  string         `json:"eventType"`
	JobID      int64          `json:"jobId"`
	EmployerID int64          `json:"employerId"`
	Status     string         `json:"status"`
	Timestamp  int64          `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (e JobEvent) PartitionKey() string {
	return strconv.FormatInt(e.JobID, 10)
}

func NewJobEvent(eventType string, j *domain.Job, at time.Time) JobEvent {
	return JobEvent{
		EventType:  eventType,
		JobID:      j.ID,
		EmployerID: j.EmployerID,
		Status:     string(j.Status),
		Timestamp:  at.UTC().UnixMilli(),
	}
}

// DecodeApplicationEvent decodes at the bus boundary. A payload without a
// recognized eventType is a permanent decode failure, never retried.
func DecodeApplicationEvent(body []byte) (ApplicationEvent, error) {
	var e ApplicationEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, domain.ErrPermanent("malformed application event", err)
	}
	switch e.EventType {
	case TypeApplicationCreated, TypeApplicationStatusChanged, TypeApplicationWithdrawn:
		return e, nil
	}
	return e, domain.ErrPermanent("unknown application event type: "+e.EventType, nil)
}

func DecodeJobEvent(body []byte) (JobEvent, error) {
	var e JobEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, domain.ErrPermanent("malformed job event", err)
	}
	switch e.EventType {
	case TypeJobCreated, TypeJobUpdated, TypeJobStatusChanged:
		return e, nil
	}
	return e, domain.ErrPermanent("unknown job event type: "+e.EventType, nil)
}
