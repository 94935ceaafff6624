package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

// Wire names of the retry metadata, merged into the original event body.
const (
	retryAttemptField     = "_retry_attempt"
	retryChannelField     = "_retry_channel"
	retryDelayField       = "_retry_delay_ms"
	retryReasonField      = "_retry_reason"
	retryScheduledAtField = "_retry_scheduled_at"
	retryUserField        = "userId"
)

// RetryEnvelope schedules one failed delivery on notification.retry. On the
// wire the original event's fields stay at the top level with the _retry_*
// metadata merged alongside them, so a consumer that ignores the metadata
// still sees a well-formed event.
type RetryEnvelope struct {
	// Original is the failed event body, without the _retry_* fields.
	Original json.RawMessage

	Attempt     int // 1-based
	Channel     string
	DelayMillis int64
	Reason      string
	ScheduledAt int64 // epoch millis

	// UserID is the partition key so retries per recipient stay ordered.
	UserID int64
}

func (e RetryEnvelope) PartitionKey() string {
	return strconv.FormatInt(e.UserID, 10)
}

// MarshalJSON flat-merges the metadata into the original event object.
func (e RetryEnvelope) MarshalJSON() ([]byte, error) {
	flat := map[string]json.RawMessage{}
	if len(e.Original) > 0 {
		if err := json.Unmarshal(e.Original, &flat); err != nil {
			return nil, fmt.Errorf("retry envelope original must be a JSON object: %w", err)
		}
	}
	meta := map[string]any{
		retryAttemptField:     e.Attempt,
		retryChannelField:     e.Channel,
		retryDelayField:       e.DelayMillis,
		retryReasonField:      e.Reason,
		retryScheduledAtField: e.ScheduledAt,
		retryUserField:        e.UserID,
	}
	for k, v := range meta {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		flat[k] = raw
	}
	return json.Marshal(flat)
}

// UnmarshalJSON extracts the _retry_* fields and keeps the remainder as the
// original event body. userId stays in the remainder; the original event
// carries it too.
func (e *RetryEnvelope) UnmarshalJSON(body []byte) error {
	flat := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &flat); err != nil {
		return err
	}
	take := func(key string, dst any) error {
		raw, ok := flat[key]
		if !ok {
			return nil
		}
		delete(flat, key)
		return json.Unmarshal(raw, dst)
	}
	if err := take(retryAttemptField, &e.Attempt); err != nil {
		return err
	}
	if err := take(retryChannelField, &e.Channel); err != nil {
		return err
	}
	if err := take(retryDelayField, &e.DelayMillis); err != nil {
		return err
	}
	if err := take(retryReasonField, &e.Reason); err != nil {
		return err
	}
	if err := take(retryScheduledAtField, &e.ScheduledAt); err != nil {
		return err
	}
	if raw, ok := flat[retryUserField]; ok {
		if err := json.Unmarshal(raw, &e.UserID); err != nil {
			return err
		}
	}
	original, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	e.Original = original
	return nil
}

func DecodeRetryEnvelope(body []byte) (RetryEnvelope, error) {
	var e RetryEnvelope
	if err := json.Unmarshal(body, &e); err != nil {
		return e, domain.ErrPermanent("malformed retry envelope", err)
	}
	if e.Attempt < 1 {
		return e, domain.ErrPermanent("retry envelope missing attempt", nil)
	}
	return e, nil
}
