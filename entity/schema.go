// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

// FieldType names the scalar and container types a schema field can
// declare.
type FieldType struct {
	// Name is the base type: "string", "integer", "float", "boolean",
	// "map", or "list".
	Name string

	// Elem is the element type for lists. Nil for non-list types.
	Elem *FieldType
}

// Scalar and container field type constructors.
var (
	TypeString  = FieldType{Name: "string"}
	TypeInteger = FieldType{Name: "integer"}
	TypeFloat   = FieldType{Name: "float"}
	TypeBoolean = FieldType{Name: "boolean"}
	TypeMap     = FieldType{Name: "map"}
)

// TypeListOf returns the list type with the given element type.
func TypeListOf(elem FieldType) FieldType {
	e := elem
	return FieldType{Name: "list", Elem: &e}
}

// String returns the type name, e.g. "integer" or "list<string>".
func (t FieldType) String() string {
	if t.Name == "list" && t.Elem != nil {
		return "list<" + t.Elem.String() + ">"
	}
	return t.Name
}

// conforms reports whether v is an acceptable value for the type.
// Integer fields accept whole-valued floats because decoded JSON carries
// all numbers as float64.
func (t FieldType) conforms(v any) bool {
	switch t.Name {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		default:
			return false
		}
	case "float":
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "map":
		_, ok := v.(map[string]any)
		return ok
	case "list":
		items, ok := v.([]any)
		if !ok {
			return false
		}
		if t.Elem == nil {
			return true
		}
		for _, item := range items {
			if !t.Elem.conforms(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Field describes one declared schema field.
type Field struct {
	// Name is the field key in the entity data map.
	Name string

	// Type is the declared field type.
	Type FieldType

	// Required rejects data missing this field.
	Required bool

	// Default is filled in for absent optional fields. Nil means no
	// default.
	Default any
}

// Schema is an ordered list of field descriptors used to validate open
// payload maps before they become entity data.
//
// Schemas are plain declarative values built with NewSchema; records are
// open, so fields not declared here pass through validation unchanged.
type Schema struct {
	// Name identifies the schema in registration and error reporting.
	Name string

	// Fields are the declared descriptors, in declaration order.
	Fields []Field
}

// NewSchema builds a schema from field descriptors.
func NewSchema(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// Validate checks data against the schema.
//
// Description:
//
//	Walks the declared fields in order. Required fields must be present;
//	present fields must conform to their declared type; absent optional
//	fields with a declared default are filled in. Unknown extra keys pass
//	through untouched.
//
// Inputs:
//
//	data - The payload map to check. Nil is treated as empty.
//
// Outputs:
//
//	map[string]any - A normalized copy of data with defaults applied.
//	error - A *FieldError naming the first offending field, or nil.
func (s *Schema) Validate(data map[string]any) (map[string]any, error) {
	normalized := CloneData(data)
	if normalized == nil {
		normalized = make(map[string]any, len(s.Fields))
	}

	for _, f := range s.Fields {
		v, present := normalized[f.Name]
		if !present {
			if f.Required {
				return nil, missingField(f.Name)
			}
			if f.Default != nil {
				normalized[f.Name] = f.Default
			}
			continue
		}
		if !f.Type.conforms(v) {
			return nil, wrongType(f.Name, f.Type.String())
		}
	}

	return normalized, nil
}
