// Package bus abstracts the partitioned, ordered, at-least-once event log.
// Topics are logical channels; the partition key preserves per-key order;
// groups receive each record at least once with per-record acknowledgment
// handled by the adapter (a handler error means "not done, redeliver or
// route", a nil return means ack).
package bus

import "context"

// Delivery is one record handed to a subscriber.
type Delivery struct {
	Topic string
	Key   string
	Body  []byte

	// MessageID is the producer-assigned stable id, when present.
	MessageID string

	// TransportID identifies the delivery at the transport level
	// (queue/delivery-tag or topic-partition-offset). Lossier than a
	// business identity but always present.
	TransportID string

	Redelivered bool
}

// Handler processes one delivery. Returning nil acks the record.
type Handler func(ctx context.Context, d Delivery) error

// Publisher is the producer half of the bus.
type Publisher interface {
	// Publish ships one record. Records with equal (topic, key) are
	// observed by consumers in publish order.
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Bus is the full adapter contract. Subscriptions are registered explicitly
// at startup; concurrency bounds the in-flight handler calls for the group.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic, group string, h Handler, concurrency int) error
	Close() error
}
