// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSubscriberGone is returned by a Subscriber whose underlying sink is
// no longer reachable. The broker drops the failing subscription on the
// spot; an unreachable subscriber's remaining subscriptions are dropped
// lazily as their own deliveries fail.
var ErrSubscriberGone = errors.New("subscriber unreachable")

// Subscriber is an opaque addressable notification sink.
//
// Notify must not block indefinitely; a subscriber bridging to a slow or
// dead transport should return an error (ErrSubscriberGone when the sink
// is permanently unreachable) instead of stalling delivery.
type Subscriber interface {
	Notify(ev Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ev Event) error

// Notify calls f.
func (f SubscriberFunc) Notify(ev Event) error { return f(ev) }

// Options configures a subscription at Subscribe time.
type Options struct {
	// Events restricts matching to the listed event types. Empty means
	// all types match.
	Events []Type

	// Filter is matched by per-key equality against the event metadata
	// first, then the event data. A key that matches in neither excludes
	// the subscription. Empty matches automatically.
	Filter map[string]any
}

// Subscription is one registered interest in a topic.
type Subscription struct {
	// ID uniquely identifies the subscription for Unsubscribe.
	ID string

	// Topic is the addressing key the subscription listens on.
	Topic string

	// Events is the accepted event-type set. Empty = all.
	Events map[Type]struct{}

	// Filter is the per-key equality filter.
	Filter map[string]any

	// Subscriber receives matching events.
	Subscriber Subscriber

	// CreatedAt is when the subscription was registered.
	CreatedAt time.Time
}

// matches reports whether the subscription wants the event.
func (s *Subscription) matches(ev Event) bool {
	if !topicMatches(s.Topic, ev.Topic) {
		return false
	}
	if len(s.Events) > 0 {
		if _, ok := s.Events[ev.Type]; !ok {
			return false
		}
	}
	for key, want := range s.Filter {
		if got, ok := ev.Metadata[key]; ok {
			if got != want {
				return false
			}
			continue
		}
		if got, ok := ev.Data[key]; ok {
			if got != want {
				return false
			}
			continue
		}
		return false
	}
	return true
}

// Broker matches emitted events against subscriptions and delivers
// notifications.
//
// Thread Safety: Broker is safe for concurrent use.
type Broker struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription

	// recent is a bounded ring of delivered events for inspection.
	recent     []Event
	recentSize int
	recentPos  int

	logger *slog.Logger
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithRecentBuffer sets how many delivered events the broker retains for
// inspection. Zero disables the buffer.
func WithRecentBuffer(n int) BrokerOption {
	return func(b *Broker) {
		b.recentSize = n
	}
}

// WithLogger sets the broker's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = l
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		subscriptions: make(map[string]*Subscription),
		recentSize:    256,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.recentSize > 0 {
		b.recent = make([]Event, 0, b.recentSize)
	}
	return b
}

// Subscribe registers interest in a topic.
//
// Inputs:
//
//	topic - Addressing key: an entity kind ("node"), a specific entity
//	("node:42"), or "*" for everything.
//	opts - Event-type set, filter map, and the subscriber handle.
//	sub - The notification sink. Must not be nil.
//
// Outputs:
//
//	string - Subscription id for Unsubscribe.
//	error - Non-nil when sub is nil.
func (b *Broker) Subscribe(topic string, sub Subscriber, opts Options) (string, error) {
	if sub == nil {
		return "", errors.New("subscriber must not be nil")
	}

	s := &Subscription{
		ID:         uuid.NewString(),
		Topic:      topic,
		Filter:     opts.Filter,
		Subscriber: sub,
		CreatedAt:  time.Now(),
	}
	if len(opts.Events) > 0 {
		s.Events = make(map[Type]struct{}, len(opts.Events))
		for _, t := range opts.Events {
			s.Events[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subscriptions[s.ID] = s
	b.mu.Unlock()

	return s.ID, nil
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscriptions, id)
	b.mu.Unlock()
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Broadcast delivers ev to every matching subscription.
//
// Description:
//
//	Matching is topic AND event-type AND filter (see Subscription). A
//	delivery failure removes the failing subscription (dead-subscriber
//	cleanup; remaining subscriptions of an unreachable subscriber are
//	removed as their own deliveries fail) and is logged; it never aborts
//	delivery to the remaining subscribers.
//
// Inputs:
//
//	ctx - Checked between deliveries; cancellation stops further fan-out.
//	ev - The event. Timestamp is filled in when zero.
func (b *Broker) Broadcast(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	matched := make([]*Subscription, 0, 4)
	for _, s := range b.subscriptions {
		if s.matches(ev) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	var dead []string
	for _, s := range matched {
		if ctx.Err() != nil {
			return
		}
		if err := s.Subscriber.Notify(ev); err != nil {
			b.logger.Warn("event delivery failed, dropping subscription",
				slog.String("subscription_id", s.ID),
				slog.String("topic", s.Topic),
				slog.String("error", err.Error()),
			)
			dead = append(dead, s.ID)
		}
	}

	if len(dead) > 0 {
		b.mu.Lock()
		for _, id := range dead {
			delete(b.subscriptions, id)
		}
		b.mu.Unlock()
	}

	b.remember(ev)
}

// remember appends ev to the bounded recent-event ring.
func (b *Broker) remember(ev Event) {
	if b.recentSize <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.recent) < b.recentSize {
		b.recent = append(b.recent, ev)
		return
	}
	b.recent[b.recentPos] = ev
	b.recentPos = (b.recentPos + 1) % b.recentSize
}

// Recent returns a copy of the retained delivered events, oldest first.
func (b *Broker) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.recent))
	out = append(out, b.recent[b.recentPos:]...)
	out = append(out, b.recent[:b.recentPos]...)
	return out
}
