// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plexusdb/plexus/config"
	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/events"
	"github.com/plexusdb/plexus/persist"
)

// Store is the storage adapter for one named store instance.
//
// See the package documentation for the concurrency model: one write lock
// serializes mutations (the single-writer owner), reads run concurrently.
type Store struct {
	name string

	// mu guards tables, indices and schemas. It is the store's
	// serialization point: every mutation takes the write lock.
	mu sync.RWMutex

	tables  map[entity.Kind]map[string]entity.Entity
	indices *edgeIndices
	schemas map[entity.Kind]*entity.Schema

	// live counts non-tombstoned entities per kind. Capacity limits are
	// live-entity budgets: a soft-deleted entity frees its slot even
	// though its tombstone stays in the table.
	live map[entity.Kind]int

	cfg        config.Config
	broker     *events.Broker
	authorizer Authorizer
	persister  persist.Persister
	logger     *slog.Logger

	closed bool
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithConfig applies a full configuration (capacities, query bounds,
// parallel thresholds, reference checking).
func WithConfig(cfg config.Config) Option {
	return func(s *Store) {
		cfg.Validate()
		s.cfg = cfg
	}
}

// WithBroker attaches an existing event broker. Without it the store
// creates its own.
func WithBroker(b *events.Broker) Option {
	return func(s *Store) {
		s.broker = b
	}
}

// WithAuthorizer injects the external authorization hook. Nil (the
// default) allows every operation.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Store) {
		s.authorizer = a
	}
}

// WithPersister attaches a write-through persister. Mutations that fail
// to persist are reverted in memory and reported to the caller.
func WithPersister(p persist.Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithStoreLogger sets the store's logger. Defaults to slog.Default().
func WithStoreLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an empty store.
func New(name string, opts ...Option) *Store {
	s := &Store{
		name:    name,
		tables:  make(map[entity.Kind]map[string]entity.Entity, int(entity.NumKinds)),
		indices: newEdgeIndices(),
		schemas: make(map[entity.Kind]*entity.Schema),
		live:    make(map[entity.Kind]int, int(entity.NumKinds)),
		cfg:     config.Default(),
	}
	for _, k := range []entity.Kind{entity.KindNode, entity.KindEdge, entity.KindGraph} {
		s.tables[k] = make(map[string]entity.Entity)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = events.NewBroker()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Broker returns the store's event broker for Subscribe/Unsubscribe.
func (s *Store) Broker() *events.Broker { return s.broker }

// Config returns the effective configuration.
func (s *Store) Config() config.Config { return s.cfg }

// Close marks the store closed and releases the persister. Further
// operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.persister != nil {
		return s.persister.Close()
	}
	return nil
}

// RegisterSchema associates a schema with an entity kind. Subsequent
// inserts and updates of that kind validate their data against it and
// store the normalized result (defaults filled in).
func (s *Store) RegisterSchema(kind entity.Kind, schema *entity.Schema) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.schemas[kind] = schema
	return nil
}

// checkCtx maps context expiry onto the store's timeout error.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil
}

// Insert stores a new entity.
//
// Description:
//
//	Assigns an id when the entity carries none, initializes metadata
//	(version 1, created=updated=now, no tombstone), validates data
//	against a registered schema, checks edge associations, writes the
//	primary table and all applicable secondary indices, and emits a
//	create event.
//
// Inputs:
//
//	ctx - Caller deadline; expiry returns ErrTimeout.
//	ent - The entity to store. Must be a *entity.Node, *entity.Edge or
//	*entity.Graph.
//
// Outputs:
//
//	entity.Entity - A copy of the stored value with populated metadata.
//	error - ErrDuplicateID, ErrMissingAssociation, ErrReference,
//	schema validation errors, capacity errors, ErrUnauthorized.
func (s *Store) Insert(ctx context.Context, ent entity.Entity) (entity.Entity, error) {
	stored, err := s.insertEntity(ctx, ent)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeCreate, stored)
	return cloneEntity(stored), nil
}

// insertEntity authorizes and applies an insert without emitting the
// create event. Insert emits immediately; transaction commit defers
// emission until the whole batch has applied.
func (s *Store) insertEntity(ctx context.Context, ent entity.Entity) (entity.Entity, error) {
	start := time.Now()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	kind := ent.EntityKind()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.authorize(ctx, Operation{Action: ActionInsert, Kind: kind, EntityID: ent.EntityID()}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stored, err := s.insertLocked(ctx, ent)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	recordMutation(s.name, kind.String(), "insert", time.Since(start))
	return stored, nil
}

// insertLocked applies an insert under the write lock. Shared by Insert
// and transaction commit.
func (s *Store) insertLocked(ctx context.Context, ent entity.Entity) (entity.Entity, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	kind := ent.EntityKind()
	table := s.tables[kind]

	stored := cloneEntity(ent)
	if stored.EntityID() == "" {
		setEntityID(stored, uuid.NewString())
	}
	id := stored.EntityID()
	if _, exists := table[id]; exists {
		return nil, fmt.Errorf("%w: %s %s", ErrDuplicateID, kind, id)
	}

	switch kind {
	case entity.KindNode:
		if s.live[kind] >= s.cfg.Limits.MaxNodes {
			return nil, ErrMaxNodesExceeded
		}
	case entity.KindEdge:
		if s.live[kind] >= s.cfg.Limits.MaxEdges {
			return nil, ErrMaxEdgesExceeded
		}
		edge := stored.(*entity.Edge)
		if edge.Source == "" || edge.Target == "" {
			return nil, ErrMissingAssociation
		}
		if s.cfg.References.CheckOnInsert {
			if err := s.checkReferencesLocked(edge); err != nil {
				return nil, err
			}
		}
	}

	if schema, ok := s.schemas[kind]; ok {
		normalized, err := schema.Validate(entityData(stored))
		if err != nil {
			return nil, err
		}
		setEntityData(stored, normalized)
	}

	now := time.Now()
	meta := stored.Meta()
	*meta = entity.Metadata{
		ID:         id,
		Kind:       kind,
		OwningType: owningType(stored),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	table[id] = stored
	s.live[kind]++
	if edge, ok := stored.(*entity.Edge); ok {
		s.indices.add(edge)
	}

	if err := s.persistLocked(ctx, stored); err != nil {
		delete(table, id)
		s.live[kind]--
		if edge, ok := stored.(*entity.Edge); ok {
			s.indices.remove(edge)
		}
		return nil, err
	}

	return stored, nil
}

// checkReferencesLocked verifies an edge's endpoints exist as live nodes.
func (s *Store) checkReferencesLocked(edge *entity.Edge) error {
	nodes := s.tables[entity.KindNode]
	for _, id := range []string{edge.Source, edge.Target} {
		ent, ok := nodes[id]
		if !ok || ent.Meta().Deleted {
			return fmt.Errorf("%w: %s", ErrReference, id)
		}
	}
	return nil
}

// Update merges data into an existing entity.
//
// Description:
//
//	Fails with ErrNotFound for unknown ids and ErrDeleted for
//	tombstones. Caller-supplied fields merge over the existing data map;
//	version increments by one, UpdatedAt moves to now. Edges whose
//	logical type changed are re-indexed. Emits an update event.
//	Source/target of an edge are immutable; only data merges.
//
// Outputs:
//
//	entity.Entity - A copy of the updated value.
//	error - ErrNotFound, ErrDeleted, schema validation errors.
func (s *Store) Update(ctx context.Context, kind entity.Kind, id string, data map[string]any) (entity.Entity, error) {
	updated, err := s.updateEntity(ctx, kind, id, data)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeUpdate, updated)
	return cloneEntity(updated), nil
}

// updateEntity authorizes and applies an update without emitting.
func (s *Store) updateEntity(ctx context.Context, kind entity.Kind, id string, data map[string]any) (entity.Entity, error) {
	start := time.Now()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.authorize(ctx, Operation{Action: ActionUpdate, Kind: kind, EntityID: id}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	updated, err := s.updateLocked(ctx, kind, id, data)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	recordMutation(s.name, kind.String(), "update", time.Since(start))
	return updated, nil
}

// updateLocked applies an update under the write lock.
func (s *Store) updateLocked(ctx context.Context, kind entity.Kind, id string, data map[string]any) (entity.Entity, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	current, ok := s.tables[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if current.Meta().Deleted {
		return nil, fmt.Errorf("%w: %s %s", ErrDeleted, kind, id)
	}

	prior := cloneEntity(current)

	merged := entity.CloneData(entityData(current))
	if merged == nil {
		merged = make(map[string]any, len(data))
	}
	for k, v := range entity.CloneData(data) {
		merged[k] = v
	}
	if schema, ok := s.schemas[kind]; ok {
		normalized, err := schema.Validate(merged)
		if err != nil {
			return nil, err
		}
		merged = normalized
	}

	if edge, ok := current.(*entity.Edge); ok {
		priorType := edge.Type()
		setEntityData(current, merged)
		if edge.Type() != priorType {
			s.indices.retype(edge, priorType)
		}
	} else {
		setEntityData(current, merged)
	}

	meta := current.Meta()
	meta.Version++
	meta.UpdatedAt = time.Now()
	meta.OwningType = owningType(current)

	if err := s.persistLocked(ctx, current); err != nil {
		s.restoreLocked(prior)
		return nil, err
	}

	return current, nil
}

// Delete soft-deletes an entity.
//
// Description:
//
//	Writes the tombstone (Deleted=true, DeletedAt=now), increments the
//	version, removes the entity from secondary indices, and emits a
//	delete event. The entity stays in the primary table and remains
//	reachable via GetAny; Get and All exclude it.
func (s *Store) Delete(ctx context.Context, kind entity.Kind, id string) error {
	deleted, err := s.deleteEntity(ctx, kind, id)
	if err != nil {
		return err
	}
	s.emit(ctx, events.TypeDelete, deleted)
	return nil
}

// deleteEntity authorizes and applies a soft delete without emitting.
func (s *Store) deleteEntity(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	start := time.Now()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.authorize(ctx, Operation{Action: ActionDelete, Kind: kind, EntityID: id}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	deleted, err := s.deleteLocked(ctx, kind, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	recordMutation(s.name, kind.String(), "delete", time.Since(start))
	return deleted, nil
}

// deleteLocked applies a soft delete under the write lock.
func (s *Store) deleteLocked(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	current, ok := s.tables[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if current.Meta().Deleted {
		return nil, fmt.Errorf("%w: %s %s", ErrDeleted, kind, id)
	}

	prior := cloneEntity(current)

	now := time.Now()
	meta := current.Meta()
	meta.Deleted = true
	meta.DeletedAt = &now
	meta.UpdatedAt = now
	meta.Version++
	s.live[kind]--

	if edge, ok := current.(*entity.Edge); ok {
		s.indices.remove(edge)
	}

	if err := s.persistLocked(ctx, current); err != nil {
		s.restoreLocked(prior)
		return nil, err
	}

	return current, nil
}

// Get returns a live entity by id.
//
// ErrNotFound and ErrDeleted are distinct: re-querying a tombstoned id
// must not look identical to querying one that never existed.
func (s *Store) Get(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.authorize(ctx, Operation{Action: ActionGet, Kind: kind, EntityID: id}); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	current, ok := s.tables[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if current.Meta().Deleted {
		return nil, fmt.Errorf("%w: %s %s", ErrDeleted, kind, id)
	}
	return s.filterOne(ctx, cloneEntity(current))
}

// GetAny returns an entity by id including tombstones. Administrative
// path; normal reads use Get.
func (s *Store) GetAny(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	current, ok := s.tables[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return cloneEntity(current), nil
}

// persistLocked writes ent through to the configured persister.
func (s *Store) persistLocked(ctx context.Context, ent entity.Entity) error {
	if s.persister == nil {
		return nil
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("persist encode %s %s: %w", ent.EntityKind(), ent.EntityID(), err)
	}
	rec := persist.Record{
		Store:   s.name,
		Kind:    ent.EntityKind().String(),
		ID:      ent.EntityID(),
		Payload: payload,
	}
	if err := s.persister.Put(ctx, rec); err != nil {
		return fmt.Errorf("persist %s %s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

// emit broadcasts a change event for ent. Best-effort: the mutation has
// already succeeded by the time emission happens.
func (s *Store) emit(ctx context.Context, typ events.Type, ent entity.Entity) {
	meta := ent.Meta()
	ev := events.Event{
		Type:     typ,
		Topic:    events.EntityTopic(meta.Kind.String(), meta.ID),
		Kind:     meta.Kind.String(),
		EntityID: meta.ID,
		Data:     entity.CloneData(entityData(ent)),
		Metadata: map[string]any{
			"id":          meta.ID,
			"kind":        meta.Kind.String(),
			"owning_type": meta.OwningType,
			"version":     meta.Version,
			"deleted":     meta.Deleted,
		},
		Timestamp: time.Now(),
	}
	s.broker.Broadcast(ctx, ev)
}

// LoadFrom replays persisted records into the store's tables. Used when
// opening a store over an existing persister. Replay bypasses schema
// validation and event emission: the records were validated when first
// written.
func (s *Store) LoadFrom(ctx context.Context, p persist.Persister) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	loaded := 0
	err := p.Load(ctx, s.name, func(rec persist.Record) error {
		ent, err := decodeRecord(rec)
		if err != nil {
			return err
		}
		kind := ent.EntityKind()
		if prev, ok := s.tables[kind][ent.EntityID()]; ok && !prev.Meta().Deleted {
			s.live[kind]--
		}
		s.tables[kind][ent.EntityID()] = ent
		if !ent.Meta().Deleted {
			s.live[kind]++
		}
		if edge, ok := ent.(*entity.Edge); ok && !edge.Metadata.Deleted {
			s.indices.add(edge)
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("load store %s: %w", s.name, err)
	}

	s.logger.Info("store loaded from persister",
		slog.String("store", s.name),
		slog.Int("entities", loaded),
	)
	return loaded, nil
}

// decodeRecord rebuilds a typed entity from a persisted record.
func decodeRecord(rec persist.Record) (entity.Entity, error) {
	switch entity.ParseKind(rec.Kind) {
	case entity.KindNode:
		var n entity.Node
		if err := json.Unmarshal(rec.Payload, &n); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", rec.ID, err)
		}
		return &n, nil
	case entity.KindEdge:
		var e entity.Edge
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return nil, fmt.Errorf("decode edge %s: %w", rec.ID, err)
		}
		return &e, nil
	case entity.KindGraph:
		var g entity.Graph
		if err := json.Unmarshal(rec.Payload, &g); err != nil {
			return nil, fmt.Errorf("decode graph %s: %w", rec.ID, err)
		}
		return &g, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, rec.Kind)
	}
}
