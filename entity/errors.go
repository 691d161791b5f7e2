// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package entity defines the value types stored by a plexus graph store:
// nodes, edges, graph containers, their shared metadata, and the schema
// facility used to validate open payload maps.
//
// # Ownership Model
//
// Entities handed to the store are copied on write; entities returned by
// the store are defensive copies. Callers may mutate what they receive
// without corrupting table state, and must not expect in-place mutation
// of a submitted value to be visible.
//
// # Metadata
//
// Every entity carries a Metadata block maintained exclusively by the
// store: version counter, creation/update timestamps, and the soft-delete
// tombstone pair (Deleted, DeletedAt).
package entity

import (
	"errors"
	"fmt"
)

// ErrValidation is the base sentinel for schema validation failures.
// FieldError values wrap it, so errors.Is(err, ErrValidation) matches any
// validation failure regardless of field.
var ErrValidation = errors.New("schema validation failed")

// FieldError reports a single field failing schema validation.
//
// The message shape is part of the observable contract:
//
//	missing required field "age"
//	field "age": expected integer
type FieldError struct {
	// Field is the offending field name.
	Field string

	// Expected is the expected type name. Empty for missing-field errors.
	Expected string

	// Missing is true when a required field was absent.
	Missing bool
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("field %q: expected %s", e.Field, e.Expected)
}

// Unwrap makes FieldError match ErrValidation under errors.Is.
func (e *FieldError) Unwrap() error { return ErrValidation }

// missingField builds the required-field-absent error for name.
func missingField(name string) error {
	return &FieldError{Field: name, Missing: true}
}

// wrongType builds the type-mismatch error for name.
func wrongType(name, expected string) error {
	return &FieldError{Field: name, Expected: expected}
}
