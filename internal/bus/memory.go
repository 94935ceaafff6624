package bus

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process bus for dev mode and tests. Per-topic FIFO, every
// group sees every record, no redelivery. Satisfies Bus.
type Memory struct {
	mu     sync.Mutex
	seq    int64
	subs   map[string][]memorySub // topic -> subscribers
	Record [][3]string            // topic, key, body (publish log, for tests)
	closed bool
}

type memorySub struct {
	group string
	h     Handler
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]memorySub)}
}

func (m *Memory) Publish(ctx context.Context, topic, key string, body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("bus closed")
	}
	m.seq++
	seq := m.seq
	subs := append([]memorySub(nil), m.subs[topic]...)
	m.Record = append(m.Record, [3]string{topic, key, string(body)})
	m.mu.Unlock()

	d := Delivery{
		Topic:       topic,
		Key:         key,
		Body:        body,
		TransportID: fmt.Sprintf("%s-0-%d", topic, seq),
	}
	for _, s := range subs {
		// Synchronous dispatch keeps publish order observable in tests.
		if err := s.h(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topic, group string, h Handler, concurrency int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("bus closed")
	}
	m.subs[topic] = append(m.subs[topic], memorySub{group: group, h: h})
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Published returns the publish log for a topic.
func (m *Memory) Published(topic string) [][3]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][3]string
	for _, r := range m.Record {
		if r[0] == topic {
			out = append(out, r)
		}
	}
	return out
}
