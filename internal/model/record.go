// Package model defines the free-form record type shared by the memory tiers.
package model

import (
	"encoding/json"
	"time"
)

// System field names on short-term records. The underscore prefix keeps them
// out of the way of user-supplied payload keys.
const (
	FieldID             = "_id"
	FieldCreatedAt      = "_created_at"
	FieldUpdatedAt      = "_updated_at"
	FieldAccessCount    = "_access_count"
	FieldLastAccessedAt = "_last_accessed_at"
	FieldLocked         = "_locked"
	FieldLockedAt       = "_locked_at"
)

// Retrieval provenance fields, set when a long-term record is materialized
// back into the short-term tier.
const (
	FieldLTMID            = "_ltm_id"
	FieldRetrievedAt      = "_retrieved_at"
	FieldRetrievedFromLTM = "_retrieved_from_ltm"
)

// Long-term record fields. Creation/update timestamps lose their underscore
// prefix when a record crosses into the durable tier.
const (
	FieldLTCreatedAt    = "created_at"
	FieldLTUpdatedAt    = "updated_at"
	FieldVersion        = "version"
	FieldSTMCreatedAt   = "stm_created_at"
	FieldSTMUpdatedAt   = "stm_updated_at"
	FieldConsolidatedAt = "consolidated_at"
)

// Record is an arbitrary-schema payload merged at the top level with system
// fields. Records round-trip through JSON, so numeric values decode as
// float64; use the typed accessors rather than direct assertions.
type Record map[string]any

// ID returns the record identifier, or "" if unset.
func (r Record) ID() string {
	return r.String(FieldID)
}

// String returns the value at key as a string, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the value at key normalized to an int. JSON decoding produces
// float64 for all numbers; values written in-process may still be int.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

// Bool returns the value at key as a bool, or false if absent.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Map returns the value at key as a nested Record, or nil if absent.
func (r Record) Map(key string) Record {
	switch v := r[key].(type) {
	case Record:
		return v
	case map[string]any:
		return Record(v)
	default:
		return nil
	}
}

// Clone returns a shallow copy of the record. Nested maps and slices are
// shared with the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge applies updates onto the record: new keys are added, overlapping
// keys overwritten, untouched keys preserved.
func (r Record) Merge(updates Record) {
	for k, v := range updates {
		r[k] = v
	}
}

// Matches reports whether every key in the query is present in the record
// with an equal value, using JSON-normalized comparison so that e.g. an
// int 3 in the query matches a decoded float64 3.
func (r Record) Matches(query Record) bool {
	for k, want := range query {
		got, ok := r[k]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if a == b {
		return true
	}
	// Fall back to JSON form; covers numeric type mismatches and nested
	// structures, both of which are common with map payloads.
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// Timestamp is the canonical wire form for record timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Now returns the current time formatted as a record timestamp.
func Now() string {
	return Timestamp(time.Now())
}
