// Package rabbitmq adapts the partitioned-log bus contract onto a RabbitMQ
// topic exchange. Topics map to routing keys, consumer groups to durable
// queues named {group}.{topic}, and the partition key rides in the
// x-partition-key header. Queue FIFO plus in-order publishing preserves
// per-key order for a single consuming process.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/consumer"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

const (
	DefaultExchange = "jobs.events"

	// Wait window for a Return / Confirm after each publish.
	publishWait = 150 * time.Millisecond

	headerPartitionKey = "x-partition-key"
)

// Bus satisfies the bus contract over one connection for publishing and one
// channel per subscription for consuming.
type Bus struct {
	url      string
	exchange string

	// prefetchStep multiplies subscription concurrency into the QoS prefetch.
	prefetchStep int

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	subWG   sync.WaitGroup
	subs    []*subscription
	subConn *amqp.Connection
}

type subscription struct {
	ch   *amqp.Channel
	pool *consumer.WorkerPool
}

func New(url, exchange string, prefetchStep int) (*Bus, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if prefetchStep <= 0 {
		prefetchStep = 2
	}
	b := &Bus{url: url, exchange: exchange, prefetchStep: prefetchStep}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}

	// Publisher confirms so a broker nack surfaces as a publish error and the
	// outbox row stays unpublished.
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	b.conn = conn
	b.ch = ch
	b.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	b.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

// Publish ships one record with mandatory routing and waits briefly for the
// broker's verdict.
func (b *Bus) Publish(ctx context.Context, topic, key string, body []byte) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("rabbitmq: missing topic")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch == nil {
		return errors.New("rabbitmq: publisher channel not ready")
	}

	err := b.ch.PublishWithContext(
		ctx,
		b.exchange,
		topic,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:   uuid.NewString(),
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Headers:     amqp.Table{headerPartitionKey: key},
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", topic, err)
	}

	select {
	case ret := <-b.returnCh:
		return errors.New("NO_ROUTE: " + ret.RoutingKey)
	case conf := <-b.confirmCh:
		if !conf.Ack {
			return errors.New("rabbitmq: publish nack")
		}
		return nil
	case <-time.After(publishWait):
		// Neither arrived inside the window; treat as accepted. Redelivery is
		// covered by the consumer-side dedup fence.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe declares the group's durable queue, binds it to the topic, and
// dispatches records through a bounded worker pool. The queue survives
// restarts so records published while the group is down are not lost.
func (b *Bus) Subscribe(ctx context.Context, topic, group string, h bus.Handler, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	log := logger.WithComponent("bus").With().
		Str("topic", topic).
		Str("group", group).
		Logger()

	b.mu.Lock()
	if b.subConn == nil {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			b.mu.Unlock()
			return fmt.Errorf("rabbitmq dial (consume): %w", err)
		}
		b.subConn = conn
	}
	conn := b.subConn
	b.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel (consume): %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}

	queueName := group + "." + topic
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if err := ch.QueueBind(q.Name, topic, b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", q.Name, topic, err)
	}
	if err := ch.Qos(concurrency*b.prefetchStep, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	pool := consumer.NewWorkerPool(concurrency)

	b.mu.Lock()
	b.subs = append(b.subs, &subscription{ch: ch, pool: pool})
	b.mu.Unlock()

	b.subWG.Add(1)
	go func() {
		defer b.subWG.Done()
		defer pool.Stop()
		log.Info().Int("concurrency", concurrency).Msg("consumer started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("consumer shutting down")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Warn().Msg("consume channel closed")
					return
				}
				m := msg
				pool.Submit(func() {
					b.dispatch(ctx, topic, h, m, log)
				})
			}
		}
	}()
	return nil
}

func (b *Bus) dispatch(ctx context.Context, topic string, h bus.Handler, msg amqp.Delivery, log zerolog.Logger) {
	key, _ := msg.Headers[headerPartitionKey].(string)
	d := bus.Delivery{
		Topic:       topic,
		Key:         key,
		Body:        msg.Body,
		MessageID:   msg.MessageId,
		TransportID: fmt.Sprintf("%s-%d", topic, msg.DeliveryTag),
		Redelivered: msg.Redelivered,
	}

	if err := h(ctx, d); err != nil {
		// A handler error means the record is not done; requeue for
		// redelivery once the fault clears. A short pause keeps a hard-down
		// dependency from spinning the queue.
		log.Warn().Err(err).Str("message_id", msg.MessageId).Msg("handler failed, requeueing")
		time.Sleep(200 * time.Millisecond)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error().Err(nackErr).Msg("nack failed")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Msg("ack failed")
	}
}

// Close tears down subscriptions first so in-flight handlers can finish,
// then the publish channel and connections.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.ch.Close()
	}
	b.subWG.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
	if b.subConn != nil {
		_ = b.subConn.Close()
		b.subConn = nil
	}
	return nil
}

var _ bus.Bus = (*Bus)(nil)
