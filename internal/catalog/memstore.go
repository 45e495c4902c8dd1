package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

var _ Store = (*MemStore)(nil)

type ayahID struct{ surah, ayah int }

// MemStore is an in-memory [Store]. The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	ayahs map[ayahID]Ayah
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{ayahs: make(map[ayahID]Ayah)}
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, key string) (Ayah, error) {
	surah, ayah, err := ParseKey(key)
	if err != nil {
		return Ayah{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.ayahs[ayahID{surah, ayah}]
	if !ok {
		return Ayah{}, fmt.Errorf("%w: %s", ErrNotFound, FormatKey(surah, ayah))
	}
	return a, nil
}

// Put implements [Store.Put].
func (s *MemStore) Put(_ context.Context, a Ayah) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ayahs == nil {
		s.ayahs = make(map[ayahID]Ayah)
	}
	s.ayahs[ayahID{a.Surah, a.Number}] = a
	return nil
}

// BulkImport implements [Store.BulkImport].
func (s *MemStore) BulkImport(ctx context.Context, ayahs []Ayah) (int, error) {
	for i, a := range ayahs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.Put(ctx, a); err != nil {
			return i, fmt.Errorf("catalog: bulk import at index %d: %w", i, err)
		}
	}
	return len(ayahs), nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context, surah int) ([]Ayah, error) {
	s.mu.RLock()
	result := make([]Ayah, 0, len(s.ayahs))
	for id, a := range s.ayahs {
		if surah == 0 || id.surah == surah {
			result = append(result, a)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, compareAyahs)
	return result, nil
}

// Count implements [Store.Count].
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ayahs), nil
}

func compareAyahs(a, b Ayah) int {
	return cmp.Or(cmp.Compare(a.Surah, b.Surah), cmp.Compare(a.Number, b.Number))
}
