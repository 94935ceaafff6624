package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
)

func TestRetryEnvelopeRoundTrip(t *testing.T) {
	env := RetryEnvelope{
		Original:    json.RawMessage(`{"eventType":"APPLICATION_CREATED","applicationId":42,"userId":7}`),
		Attempt:     2,
		Channel:     "email",
		DelayMillis: 2000,
		Reason:      "smtp 421",
		ScheduledAt: 1750000000000,
		UserID:      7,
	}
	assert.Equal(t, "7", env.PartitionKey())

	body, err := json.Marshal(env)
	require.NoError(t, err)

	got, err := DecodeRetryEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, env.Attempt, got.Attempt)
	assert.Equal(t, env.Channel, got.Channel)
	assert.Equal(t, env.UserID, got.UserID)
	assert.JSONEq(t, string(env.Original), string(got.Original))
}

func TestRetryEnvelopeFlattensOriginal(t *testing.T) {
	body, err := json.Marshal(RetryEnvelope{
		Original: json.RawMessage(`{"eventType":"APPLICATION_CREATED","applicationId":42,"jobId":100,"userId":9}`),
		Attempt:  1,
		Channel:  "sms",
		UserID:   9,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))

	// The original event rides at the top level, next to the metadata.
	assert.Contains(t, raw, "eventType")
	assert.Contains(t, raw, "applicationId")
	assert.Contains(t, raw, "jobId")
	assert.Contains(t, raw, "userId")
	assert.Contains(t, raw, "_retry_attempt")
	assert.Contains(t, raw, "_retry_channel")
	assert.Contains(t, raw, "_retry_delay_ms")
	assert.NotContains(t, raw, "original")
}

func TestRetryEnvelopeDecodeStripsMetadata(t *testing.T) {
	got, err := DecodeRetryEnvelope([]byte(`{
		"eventType":"APPLICATION_CREATED","applicationId":42,"userId":7,
		"_retry_attempt":2,"_retry_channel":"email","_retry_delay_ms":2000,
		"_retry_reason":"smtp 421","_retry_scheduled_at":1750000000000
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "email", got.Channel)
	assert.Equal(t, int64(7), got.UserID)
	assert.JSONEq(t, `{"eventType":"APPLICATION_CREATED","applicationId":42,"userId":7}`, string(got.Original))
}

func TestDecodeRetryEnvelopeRejectsMalformed(t *testing.T) {
	_, err := DecodeRetryEnvelope([]byte("not json"))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))

	// Missing attempt marks a record that never came from the failure router.
	_, err = DecodeRetryEnvelope([]byte(`{"eventType":"APPLICATION_CREATED","_retry_channel":"email"}`))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}
