// SPDX-License-Identifier: MIT

// Package store persists encoded tbf documents together with their
// metadata. Backends are selected via the factory in factory.go.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("store: document not found")

// Meta describes a stored document without its payload.
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Encoding  string    `json:"encoding"`
	Layers    int       `json:"layers"`
	Objects   int       `json:"objects"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record is a stored document: metadata plus the encoded tbf stream.
type Record struct {
	Meta
	Data []byte `json:"-"`
}

// Store is the document persistence contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put inserts or replaces a record. UpdatedAt is stamped by the store;
	// CreatedAt is preserved when the record already exists.
	Put(ctx context.Context, rec *Record) error
	// Get returns the full record, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// List returns metadata for all records, ordered by creation time.
	List(ctx context.Context) ([]Meta, error)
	// Delete removes a record; deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Ping reports whether the backend is usable (readiness probe).
	Ping(ctx context.Context) error
	Close() error
}
