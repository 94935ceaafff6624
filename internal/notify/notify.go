// Package notify delivers user-facing notifications over independent
// channels (email, sms, push). Each channel isolates its downstream behind a
// bulkhead and a circuit breaker so one saturated provider cannot take the
// others down.
package notify

import (
	"context"
	"strconv"
	"strings"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/consumer"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/contracts/event"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
)

// Channel names double as metric labels and retry-envelope channel ids.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// Message is one rendered notification ready for a provider.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender ships a rendered message through one provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// RecipientResolver maps a user to a channel address. An empty address is a
// permanent failure; there is nothing to retry.
type RecipientResolver interface {
	Resolve(ctx context.Context, channel string, userID int64) (string, error)
}

// Channel binds a sender to its isolation primitives and event rendering.
type Channel struct {
	name     string
	sender   Sender
	resolver RecipientResolver
	bulkhead *resilience.Bulkhead
	breaker  *resilience.Breaker
}

func NewChannel(name string, sender Sender, resolver RecipientResolver, bh *resilience.Bulkhead, br *resilience.Breaker) *Channel {
	return &Channel{
		name:     name,
		sender:   sender,
		resolver: resolver,
		bulkhead: bh,
		breaker:  br,
	}
}

func (c *Channel) Name() string { return c.name }

// Handle processes one application event body: resolve the recipient, render
// the message, send through the bulkhead and breaker. Classification:
// resolver misses and malformed recipients are PERMANENT, provider faults
// TRANSIENT, saturation SERVICE_UNAVAILABLE (both retryable).
func (c *Channel) Handle(ctx context.Context, body []byte) error {
	ev, err := event.DecodeApplicationEvent(body)
	if err != nil {
		return err
	}

	recipient, err := c.resolver.Resolve(ctx, c.name, ev.UserID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(recipient) == "" {
		return domain.ErrPermanent("no "+c.name+" address for user "+strconv.FormatInt(ev.UserID, 10), nil)
	}

	msg := render(c.name, recipient, ev)

	err = c.bulkhead.Execute(ctx, func() error {
		return c.breaker.Execute(func() error {
			if sendErr := c.sender.Send(ctx, msg); sendErr != nil {
				return classify(sendErr)
			}
			return nil
		}, nil)
	})
	if err != nil {
		return err
	}

	log := logger.WithComponent("notify")
	log.Info().
		Str("channel", c.name).
		Str("provider", c.sender.Name()).
		Int64("user_id", ev.UserID).
		Str("event_type", ev.EventType).
		Msg("notification sent")
	return nil
}

// classify keeps already-typed errors and treats raw provider faults as
// transient.
func classify(err error) error {
	if _, ok := err.(*domain.AppError); ok {
		return err
	}
	return domain.ErrTransient("provider send failed", err)
}

func render(channel, recipient string, ev event.ApplicationEvent) Message {
	jobRef := "job " + strconv.FormatInt(ev.JobID, 10)
	var subject, text string
	switch ev.EventType {
	case event.TypeApplicationCreated:
		subject = "Application received"
		text = "Your application for " + jobRef + " was received."
	case event.TypeApplicationStatusChanged:
		subject = "Application update"
		text = "Your application for " + jobRef + " is now " + ev.Status + "."
	case event.TypeApplicationWithdrawn:
		subject = "Application withdrawn"
		text = "Your application for " + jobRef + " was withdrawn."
	default:
		subject = "Application update"
		text = "Your application for " + jobRef + " changed."
	}
	return Message{Recipient: recipient, Subject: subject, Body: text}
}

// Binding adapts the channel into the consumer runtime's shape. Each channel
// consumes application.created under its own group so channels fail and
// retry independently.
func (c *Channel) Binding(concurrency int) consumer.Binding {
	return consumer.Binding{
		Topic:       event.TopicApplicationCreated,
		Group:       "notify-" + c.name,
		Channel:     c.name,
		Concurrency: concurrency,
		Identity:    applicationIdentity(c.name),
		Handle:      c.Handle,
	}
}

// applicationIdentity derives the dedup identity channel:eventType:aggregate
// so each channel fences its own deliveries.
func applicationIdentity(channel string) func(bus.Delivery) (string, string, int64, error) {
	return func(d bus.Delivery) (string, string, int64, error) {
		ev, err := event.DecodeApplicationEvent(d.Body)
		if err != nil {
			return "", "", 0, err
		}
		id := channel + ":" + ev.EventType + ":" + strconv.FormatInt(ev.ApplicationID, 10)
		return id, ev.EventType, ev.UserID, nil
	}
}
