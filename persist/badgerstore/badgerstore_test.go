// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexusdb/plexus/persist"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutLoadRemove(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	recs := []persist.Record{
		{Store: "main", Kind: "node", ID: "a", Payload: []byte(`{"id":"a"}`)},
		{Store: "main", Kind: "node", ID: "b", Payload: []byte(`{"id":"b"}`)},
		{Store: "main", Kind: "edge", ID: "e", Payload: []byte(`{"id":"e"}`)},
		{Store: "other", Kind: "node", ID: "x", Payload: []byte(`{"id":"x"}`)},
	}
	for _, rec := range recs {
		require.NoError(t, s.Put(ctx, rec))
	}

	// Load scopes to one store only.
	var loaded []persist.Record
	err := s.Load(ctx, "main", func(rec persist.Record) error {
		loaded = append(loaded, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for _, rec := range loaded {
		assert.Equal(t, "main", rec.Store)
		assert.NotEmpty(t, rec.Kind)
		assert.NotEmpty(t, rec.Payload)
	}

	// Remove deletes a single record; removing again is a no-op.
	require.NoError(t, s.Remove(ctx, "main", "node", "a"))
	require.NoError(t, s.Remove(ctx, "main", "node", "a"))

	loaded = nil
	require.NoError(t, s.Load(ctx, "main", func(rec persist.Record) error {
		loaded = append(loaded, rec)
		return nil
	}))
	assert.Len(t, loaded, 2)
}

func TestStore_PutOverwrites(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	rec := persist.Record{Store: "m", Kind: "node", ID: "a", Payload: []byte(`v1`)}
	require.NoError(t, s.Put(ctx, rec))
	rec.Payload = []byte(`v2`)
	require.NoError(t, s.Put(ctx, rec))

	var got []byte
	require.NoError(t, s.Load(ctx, "m", func(r persist.Record) error {
		got = r.Payload
		return nil
	}))
	assert.Equal(t, []byte(`v2`), got)
}

func TestStore_LoadCallbackErrorStopsScan(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, persist.Record{
			Store: "m", Kind: "node", ID: id, Payload: []byte(`{}`),
		}))
	}

	calls := 0
	err := s.Load(ctx, "m", func(persist.Record) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestStore_PersistentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0 // no background GC in tests
	cfg.SyncWrites = false

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, persist.Record{
		Store: "m", Kind: "node", ID: "a", Payload: []byte(`{"id":"a"}`),
	}))
	require.NoError(t, s.Close())

	// Reopen and read back.
	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	var loaded int
	require.NoError(t, s.Load(ctx, "m", func(rec persist.Record) error {
		loaded++
		assert.Equal(t, "a", rec.ID)
		return nil
	}))
	assert.Equal(t, 1, loaded)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key        string
		kind, id   string
		ok         bool
	}{
		{"plexus/m/node/a", "node", "a", true},
		{"plexus/m/edge/id/with/slash", "edge", "id/with/slash", true},
		{"plexus/other/node/a", "", "", false},
		{"plexus/m/node", "", "", false},
	}
	for _, tt := range tests {
		kind, id, ok := splitKey("m", tt.key)
		if ok != tt.ok || kind != tt.kind || id != tt.id {
			t.Errorf("splitKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.key, kind, id, ok, tt.kind, tt.id, tt.ok)
		}
	}
}
