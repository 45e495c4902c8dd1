package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no ayah has the requested key.
var ErrNotFound = errors.New("catalog: ayah not found")

// Store is a collection of reference ayahs. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the ayah for key. Keys are normalised first, so "01:1" and
	// "1:1" are equivalent. Returns [ErrInvalidKey] or [ErrNotFound].
	Get(ctx context.Context, key string) (Ayah, error)

	// Put validates and inserts or replaces a.
	Put(ctx context.Context, a Ayah) error

	// BulkImport puts every ayah in order and returns how many were stored
	// before the first failure.
	BulkImport(ctx context.Context, ayahs []Ayah) (int, error)

	// List returns the ayahs of one surah ordered by number, or every ayah
	// ordered by surah and number when surah is 0.
	List(ctx context.Context, surah int) ([]Ayah, error)

	// Count returns the number of stored ayahs. It doubles as a cheap
	// readiness probe.
	Count(ctx context.Context) (int, error)
}
