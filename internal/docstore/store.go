// Package docstore is the hierarchical document store behind carts, profiles,
// orders and the public catalog. Paths look like
// tenant/{scope}/users/{identity}/{collection}/{docId} and
// tenant/{scope}/public/{collection}/{docId}.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Document is one stored document with its decoded fields.
type Document struct {
	ID        string
	Path      string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode copies the document fields into v through their JSON representation.
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.Path, err)
	}
	return nil
}

// Encode turns a typed value into document fields.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return fields, nil
}

// Snapshot is one state of a subscribed document or collection. Doc is nil when the
// subscribed document does not exist.
type Snapshot struct {
	Path string
	Doc  *Document
	Docs []Document
	Err  error
}

// Store is the document store surface used by the storefront.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// Set replaces the whole document.
	Set(ctx context.Context, path string, fields map[string]any) error
	// Merge replaces only the given top-level fields, creating the document if needed.
	Merge(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	// Add creates a document with a generated id under collection.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	// SubscribeDoc streams the current state of a document, then every change.
	SubscribeDoc(ctx context.Context, path string) (<-chan Snapshot, error)
	// SubscribeCollection streams the current query result of a collection, then every change.
	SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan Snapshot, error)
}

func mergeFields(existing, update map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(update))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// normalize round-trips fields through JSON so both implementations hand back the
// same value shapes (numbers as float64, nested objects as maps).
func normalize(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	return Encode(fields)
}
