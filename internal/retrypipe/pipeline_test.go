package retrypipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
)

type invocation struct {
	channel string
	userID  int64
	attempt int
	body    string
}

type fakeInvoker struct {
	calls []invocation
	err   error
}

func (f *fakeInvoker) Reinvoke(ctx context.Context, channel string, original []byte, userID int64, attempt int) error {
	f.calls = append(f.calls, invocation{channel: channel, userID: userID, attempt: attempt, body: string(original)})
	return f.err
}

func fastCfg() Config {
	return Config{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2.0, MaxInterval: 5 * time.Millisecond}
}

func publishEnvelope(t *testing.T, b *bus.Memory, env event.RetryEnvelope) error {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return b.Publish(context.Background(), event.TopicNotificationRetry, env.PartitionKey(), body)
}

func TestPipelineReinvokes(t *testing.T) {
	b := bus.NewMemory()
	inv := &fakeInvoker{}
	p := NewPipeline(b, inv, fastCfg())
	require.NoError(t, p.Start(context.Background()))

	env := event.RetryEnvelope{
		Original:    json.RawMessage(`{"eventType":"APPLICATION_CREATED","userId":7}`),
		Attempt:     1,
		Channel:     "email",
		DelayMillis: 1,
		Reason:      "smtp 421",
		UserID:      7,
	}
	require.NoError(t, publishEnvelope(t, b, env))

	require.Len(t, inv.calls, 1)
	got := inv.calls[0]
	assert.Equal(t, "email", got.channel)
	assert.Equal(t, int64(7), got.userID)
	assert.Equal(t, 1, got.attempt)
	// The handler sees the original event with the metadata stripped off.
	assert.JSONEq(t, `{"eventType":"APPLICATION_CREATED","userId":7}`, got.body)
}

func TestPipelineExhaustionDrops(t *testing.T) {
	b := bus.NewMemory()
	inv := &fakeInvoker{}
	p := NewPipeline(b, inv, fastCfg())
	require.NoError(t, p.Start(context.Background()))

	env := event.RetryEnvelope{
		Original: json.RawMessage(`{}`),
		Attempt:  3, // == MaxAttempts
		Channel:  "email",
		UserID:   7,
	}
	require.NoError(t, publishEnvelope(t, b, env))

	assert.Empty(t, inv.calls, "exhausted record must not be re-invoked")
	// The pipeline never republishes, not even on exhaustion.
	assert.Len(t, b.Published(event.TopicNotificationRetry), 1)
}

func TestPipelineInvokerFailureAcks(t *testing.T) {
	b := bus.NewMemory()
	inv := &fakeInvoker{err: errors.New("still down")}
	p := NewPipeline(b, inv, fastCfg())
	require.NoError(t, p.Start(context.Background()))

	env := event.RetryEnvelope{
		Original:    json.RawMessage(`{}`),
		Attempt:     2,
		Channel:     "sms",
		DelayMillis: 1,
		UserID:      9,
	}
	// A failed reinvoke still acks; routing the next attempt is the
	// invoker's job, not the pipeline's.
	require.NoError(t, publishEnvelope(t, b, env))
	require.Len(t, inv.calls, 1)
	assert.Len(t, b.Published(event.TopicNotificationRetry), 1)
}

func TestPipelineMalformedDropped(t *testing.T) {
	b := bus.NewMemory()
	inv := &fakeInvoker{}
	p := NewPipeline(b, inv, fastCfg())
	require.NoError(t, p.Start(context.Background()))

	err := b.Publish(context.Background(), event.TopicNotificationRetry, "x", []byte("not json"))
	require.NoError(t, err)
	assert.Empty(t, inv.calls)
}

func TestPipelineShutdownMidWait(t *testing.T) {
	b := bus.NewMemory()
	inv := &fakeInvoker{}
	p := NewPipeline(b, inv, fastCfg())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()

	env := event.RetryEnvelope{Original: json.RawMessage(`{}`), Attempt: 1, Channel: "email", DelayMillis: 60000, UserID: 7}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	// Canceled context: the record stays unacked for redelivery.
	err = b.Publish(ctx, event.TopicNotificationRetry, "7", body)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, inv.calls)
}
