// Package memory records publishes in process, standing in for Pub/Sub in
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// PublishedMessage is one recorded publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher appends every publish to an in-memory log.
type Publisher struct {
	mu     sync.Mutex
	nextID int
	log    []PublishedMessage
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload under the topic and returns a sequential
// message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	msg := PublishedMessage{
		ID:      fmt.Sprintf("mem-%06d", p.nextID),
		Topic:   topic,
		Payload: payload,
	}
	p.log = append(p.log, msg)
	return msg.ID, nil
}

// Messages returns a snapshot of everything published so far.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.log...)
}
