// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexusdb/plexus/config"
	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/events"
	"github.com/plexusdb/plexus/persist"
)

func newNode(id string, data map[string]any) *entity.Node {
	return &entity.Node{ID: id, Data: data}
}

func newEdge(id, source, target, edgeType string, weight float64) *entity.Edge {
	return &entity.Edge{
		ID:     id,
		Source: source,
		Target: target,
		Data: map[string]any{
			entity.EdgeTypeKey:   edgeType,
			entity.EdgeWeightKey: weight,
		},
	}
}

func TestStore_InsertGetRoundTrip(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	data := map[string]any{"name": "ada", "age": 36}
	stored, err := s.Insert(ctx, newNode("n1", data))
	require.NoError(t, err)

	got, err := s.Get(ctx, entity.KindNode, "n1")
	require.NoError(t, err)

	node := got.(*entity.Node)
	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, data, node.Data)
	assert.Equal(t, int64(1), node.Metadata.Version)
	assert.False(t, node.Metadata.CreatedAt.IsZero())
	assert.Equal(t, stored.Meta().CreatedAt, node.Metadata.CreatedAt)
}

func TestStore_InsertAssignsID(t *testing.T) {
	s := New("test")
	stored, err := s.Insert(context.Background(), newNode("", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.EntityID())
}

func TestStore_InsertDuplicateID(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("dup", nil))
	require.NoError(t, err)

	_, err = s.Insert(ctx, newNode("dup", nil))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestStore_Versioning(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	// Insert yields version 1.
	_, err := s.Insert(ctx, newNode("v", map[string]any{"x": 1}))
	require.NoError(t, err)

	// Each update increments by exactly 1.
	for i := 2; i <= 4; i++ {
		updated, err := s.Update(ctx, entity.KindNode, "v", map[string]any{"x": i})
		require.NoError(t, err)
		assert.Equal(t, int64(i), updated.Meta().Version)
	}

	// Delete increments once more and tombstones.
	require.NoError(t, s.Delete(ctx, entity.KindNode, "v"))
	gone, err := s.GetAny(ctx, entity.KindNode, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(5), gone.Meta().Version)
	assert.True(t, gone.Meta().Deleted)
	require.NotNil(t, gone.Meta().DeletedAt)
}

func TestStore_TombstoneDistinction(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("t", nil))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, entity.KindNode, "t"))

	_, err = s.Get(ctx, entity.KindNode, "t")
	assert.ErrorIs(t, err, ErrDeleted, "tombstoned id must read as deleted")

	_, err = s.Get(ctx, entity.KindNode, "never")
	assert.ErrorIs(t, err, ErrNotFound, "unknown id must read as not found")

	// Mutating a tombstone fails the same way.
	_, err = s.Update(ctx, entity.KindNode, "t", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrDeleted)
	assert.ErrorIs(t, s.Delete(ctx, entity.KindNode, "t"), ErrDeleted)
}

func TestStore_UpdateMergesData(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("m", map[string]any{"keep": "old", "change": 1}))
	require.NoError(t, err)

	updated, err := s.Update(ctx, entity.KindNode, "m", map[string]any{"change": 2, "new": true})
	require.NoError(t, err)

	data := updated.(*entity.Node).Data
	assert.Equal(t, "old", data["keep"])
	assert.Equal(t, 2, data["change"])
	assert.Equal(t, true, data["new"])
}

func TestStore_ReturnedEntityIsACopy(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("c", map[string]any{"x": 1}))
	require.NoError(t, err)

	got, err := s.Get(ctx, entity.KindNode, "c")
	require.NoError(t, err)
	got.(*entity.Node).Data["x"] = 999

	again, err := s.Get(ctx, entity.KindNode, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, again.(*entity.Node).Data["x"], "caller mutation must not reach the table")
}

func TestStore_EdgeRequiresAssociation(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, &entity.Edge{ID: "e", Target: "b"})
	assert.ErrorIs(t, err, ErrMissingAssociation)

	_, err = s.Insert(ctx, &entity.Edge{ID: "e", Source: "a"})
	assert.ErrorIs(t, err, ErrMissingAssociation)
}

func TestStore_ReferenceCheckOnInsert(t *testing.T) {
	cfg := config.Default()
	cfg.References.CheckOnInsert = true
	s := New("test", WithConfig(cfg))
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("a", nil))
	require.NoError(t, err)

	_, err = s.Insert(ctx, newEdge("e1", "a", "ghost", "rel", 1))
	assert.ErrorIs(t, err, ErrReference)

	_, err = s.Insert(ctx, newNode("b", nil))
	require.NoError(t, err)
	_, err = s.Insert(ctx, newEdge("e1", "a", "b", "rel", 1))
	assert.NoError(t, err)
}

func TestStore_SchemaEnforcedOnInsertAndUpdate(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	schema := entity.NewSchema("person",
		entity.Field{Name: "age", Type: entity.TypeInteger, Required: true},
		entity.Field{Name: "role", Type: entity.TypeString, Default: "user"},
	)
	require.NoError(t, s.RegisterSchema(entity.KindNode, schema))

	_, err := s.Insert(ctx, newNode("p", map[string]any{}))
	assert.ErrorIs(t, err, entity.ErrValidation)

	stored, err := s.Insert(ctx, newNode("p", map[string]any{"age": 30}))
	require.NoError(t, err)
	assert.Equal(t, "user", stored.(*entity.Node).Data["role"], "default should fill in")

	_, err = s.Update(ctx, entity.KindNode, "p", map[string]any{"age": "thirty"})
	assert.ErrorIs(t, err, entity.ErrValidation)

	// Failed update must not bump the version or corrupt data.
	got, err := s.Get(ctx, entity.KindNode, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Meta().Version)
	assert.Equal(t, 30, got.(*entity.Node).Data["age"])
}

func TestStore_CapacityLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxNodes = 2
	s := New("test", WithConfig(cfg))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Insert(ctx, newNode(fmt.Sprintf("n%d", i), nil))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, newNode("overflow", nil))
	assert.ErrorIs(t, err, ErrMaxNodesExceeded)
}

func TestStore_CapacityFreedBySoftDelete(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxNodes = 2
	s := New("test", WithConfig(cfg))
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("n0", nil))
	require.NoError(t, err)
	_, err = s.Insert(ctx, newNode("n1", nil))
	require.NoError(t, err)
	_, err = s.Insert(ctx, newNode("n2", nil))
	require.ErrorIs(t, err, ErrMaxNodesExceeded)

	// Capacity is a live-entity budget: the tombstone left by a soft
	// delete does not hold the slot.
	require.NoError(t, s.Delete(ctx, entity.KindNode, "n0"))
	_, err = s.Insert(ctx, newNode("n2", nil))
	assert.NoError(t, err)
}

func TestStore_ContextExpiryIsTimeout(t *testing.T) {
	s := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, entity.KindNode, "x")
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = s.Insert(ctx, newNode("x", nil))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStore_ClosedStore(t *testing.T) {
	s := New("test")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	_, err := s.Insert(context.Background(), newNode("x", nil))
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.Get(context.Background(), entity.KindNode, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_MutationsEmitEvents(t *testing.T) {
	broker := events.NewBroker()
	s := New("test", WithBroker(broker))
	ctx := context.Background()

	var mu sync.Mutex
	var seen []events.Event
	_, err := broker.Subscribe("node", events.SubscriberFunc(func(ev events.Event) error {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
		return nil
	}), events.Options{})
	require.NoError(t, err)

	_, err = s.Insert(ctx, newNode("n", map[string]any{"x": 1}))
	require.NoError(t, err)
	_, err = s.Update(ctx, entity.KindNode, "n", map[string]any{"x": 2})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, entity.KindNode, "n"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, events.TypeCreate, seen[0].Type)
	assert.Equal(t, events.TypeUpdate, seen[1].Type)
	assert.Equal(t, events.TypeDelete, seen[2].Type)
	assert.Equal(t, "node:n", seen[0].Topic)
	assert.Equal(t, int64(3), seen[2].Metadata["version"])
	assert.Equal(t, true, seen[2].Metadata["deleted"])
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	_, err := s.Insert(ctx, newNode("hot", map[string]any{"x": 0}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := s.Update(ctx, entity.KindNode, "hot", map[string]any{"x": i})
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := s.Get(ctx, entity.KindNode, "hot")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// 4 writers x 25 updates on top of version 1.
	got, err := s.Get(ctx, entity.KindNode, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(101), got.Meta().Version)
}

// fakePersister records puts/removes and can be told to fail.
type fakePersister struct {
	mu      sync.Mutex
	records map[string]persist.Record
	failPut bool
}

func newFakePersister() *fakePersister {
	return &fakePersister{records: make(map[string]persist.Record)}
}

func (f *fakePersister) key(storeName, kind, id string) string {
	return storeName + "/" + kind + "/" + id
}

func (f *fakePersister) Put(_ context.Context, rec persist.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errors.New("disk full")
	}
	f.records[f.key(rec.Store, rec.Kind, rec.ID)] = rec
	return nil
}

func (f *fakePersister) Remove(_ context.Context, storeName, kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, f.key(storeName, kind, id))
	return nil
}

func (f *fakePersister) Load(_ context.Context, storeName string, fn func(persist.Record) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Store != storeName {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePersister) Close() error { return nil }

func TestStore_WriteThroughAndReplay(t *testing.T) {
	p := newFakePersister()
	ctx := context.Background()

	s := New("primary", WithPersister(p))
	_, err := s.Insert(ctx, newNode("a", map[string]any{"x": 1}))
	require.NoError(t, err)
	_, err = s.Insert(ctx, newEdge("e", "a", "a", "self", 1))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, entity.KindEdge, "e"))

	// A fresh store over the same persister replays the state,
	// tombstones included.
	replica := New("primary")
	loaded, err := replica.LoadFrom(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	got, err := replica.Get(ctx, entity.KindNode, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.(*entity.Node).Data["x"], "numbers round-trip as float64")

	_, err = replica.Get(ctx, entity.KindEdge, "e")
	assert.ErrorIs(t, err, ErrDeleted)
}

func TestStore_PersistFailureRevertsMutation(t *testing.T) {
	p := newFakePersister()
	ctx := context.Background()
	s := New("test", WithPersister(p))

	_, err := s.Insert(ctx, newNode("a", map[string]any{"x": 1}))
	require.NoError(t, err)

	p.failPut = true

	_, err = s.Insert(ctx, newNode("b", nil))
	require.Error(t, err)
	_, err = s.Get(ctx, entity.KindNode, "b")
	assert.ErrorIs(t, err, ErrNotFound, "failed insert must not leave the entity behind")

	_, err = s.Update(ctx, entity.KindNode, "a", map[string]any{"x": 2})
	require.Error(t, err)
	got, err := s.Get(ctx, entity.KindNode, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.(*entity.Node).Data["x"])
	assert.Equal(t, int64(1), got.Meta().Version, "failed update must not bump the version")

	err = s.Delete(ctx, entity.KindNode, "a")
	require.Error(t, err)
	_, err = s.Get(ctx, entity.KindNode, "a")
	assert.NoError(t, err, "failed delete must not tombstone")
}
