// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events provides the in-process pub/sub layer for store change
// notification.
//
// The store broadcasts an Event after every successful mutation; the
// broker matches events against registered subscriptions and delivers
// notifications. Delivery is best-effort: one failing subscriber never
// affects the others or the triggering mutation.
//
// # Thread Safety
//
// Broker is safe for concurrent use. Subscriptions are guarded
// independently of entity storage, so subscribing never blocks writes.
package events

import (
	"strings"
	"time"
)

// Type classifies a change event.
type Type string

const (
	// TypeCreate is emitted after a successful insert.
	TypeCreate Type = "create"

	// TypeUpdate is emitted after a successful update.
	TypeUpdate Type = "update"

	// TypeDelete is emitted after a successful (soft) delete.
	TypeDelete Type = "delete"

	// TypeCustom is reserved for application-defined broadcasts.
	TypeCustom Type = "custom"
)

// Event is a single change notification.
type Event struct {
	// Type is the change classification.
	Type Type `json:"type"`

	// Topic is the addressing key, e.g. "node" or "node:42".
	Topic string `json:"topic"`

	// Kind is the entity category name ("node", "edge", "graph").
	Kind string `json:"entity_kind"`

	// EntityID is the mutated entity's id.
	EntityID string `json:"entity_id"`

	// Data is the entity payload at emission time.
	Data map[string]any `json:"data,omitempty"`

	// Metadata carries bookkeeping fields (version, owning type, ...)
	// flattened for filter matching.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// EntityTopic builds the specific topic for one entity, e.g. "node:42".
func EntityTopic(kind, id string) string {
	return kind + ":" + id
}

// topicMatches reports whether a subscription topic covers an event topic.
//
// Exact matches always cover. A coarse subscription on "node" covers every
// "node:<id>" event. "*" covers everything.
func topicMatches(subTopic, eventTopic string) bool {
	if subTopic == "*" || subTopic == eventTopic {
		return true
	}
	if kind, _, ok := strings.Cut(eventTopic, ":"); ok && subTopic == kind {
		return true
	}
	return false
}
