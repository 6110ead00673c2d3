package model

import "time"

// PropertyKind is the inferred primitive kind of a declared property.
type PropertyKind string

const (
	KindString    PropertyKind = "string"
	KindNumber    PropertyKind = "number"
	KindDate      PropertyKind = "date"
	KindReference PropertyKind = "reference"
)

type Property struct {
	Name string       `json:"name"`
	Kind PropertyKind `json:"kind"`
}

// EntityType is the schema-level record for one ingested entity type.
// Created when the first instance of the type shows up; properties grow as
// new ones are observed, never shrink automatically.
type EntityType struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasProperty reports whether the type declares the named property.
func (t EntityType) HasProperty(name string) bool {
	for _, p := range t.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PropertyKind returns the declared kind for a property name, defaulting to
// string for properties the ontology has not classified yet.
func (t EntityType) PropertyKind(name string) PropertyKind {
	for _, p := range t.Properties {
		if p.Name == name {
			if p.Kind == "" {
				return KindString
			}
			return p.Kind
		}
	}
	return KindString
}
