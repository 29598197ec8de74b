package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fixpal/backend/pkg/logger"
)

// ErrServiceUnavailable marks a knowledge-store failure (timeout, connection
// loss, never-loaded corpus). Callers must surface it with a retry
// recommendation instead of conflating it with "no match".
var ErrServiceUnavailable = errors.New("knowledge store unavailable")

// Store supplies the corpus. Population is external; the index only reads.
type Store interface {
	ListEntries(ctx context.Context) ([]*Entry, error)
}

// Index holds an immutable corpus snapshot behind an atomic pointer. Lookups
// never observe a half-updated corpus: Reload builds a complete replacement
// snapshot and swaps it in with a single pointer store.
type Index struct {
	store         Store
	maxCandidates int
	snap          atomic.Pointer[snapshot]
}

type snapshot struct {
	entries    []*Entry
	byCategory map[Category][]*Entry
}

func NewIndex(store Store, maxCandidates int) *Index {
	if maxCandidates <= 0 {
		maxCandidates = 500
	}
	return &Index{
		store:         store,
		maxCandidates: maxCandidates,
	}
}

// Reload pulls the full corpus from the store, validates it, and atomically
// swaps the active snapshot.
func (idx *Index) Reload(ctx context.Context) error {
	entries, err := idx.store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	snap, err := buildSnapshot(entries)
	if err != nil {
		return err
	}

	idx.snap.Store(snap)
	logger.Info("Knowledge index reloaded", zap.Int("entries", len(snap.entries)))
	return nil
}

func buildSnapshot(entries []*Entry) (*snapshot, error) {
	seen := make(map[string]struct{}, len(entries))
	snap := &snapshot{
		byCategory: make(map[Category][]*Entry),
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
		snap.entries = append(snap.entries, e)
		snap.byCategory[e.Category] = append(snap.byCategory[e.Category], e)
	}

	// Newest-updated first so the uncapped-hints path keeps the freshest
	// slice of the corpus when the candidate cap bites.
	sort.Slice(snap.entries, func(i, j int) bool {
		a, b := snap.entries[i], snap.entries[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	return snap, nil
}

// Lookup returns the unranked candidate set for the given category hints and
// query terms. With hints, candidates are the union of the hinted categories.
// Without hints, candidates come from the full corpus, narrowed to entries
// sharing at least one term when any entry does, and bounded by the candidate
// cap. The returned slice must not be mutated.
func (idx *Index) Lookup(ctx context.Context, hints []Category, terms []string) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	snap := idx.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: corpus not loaded", ErrServiceUnavailable)
	}

	if len(hints) > 0 {
		var candidates []*Entry
		for _, hint := range hints {
			candidates = append(candidates, snap.byCategory[hint]...)
		}
		return candidates, nil
	}

	pool := snap.entries
	if len(terms) > 0 {
		joined := strings.Join(terms, " ")
		filtered := make([]*Entry, 0, len(pool))
		for _, e := range pool {
			if e.MatchesAnyTerm(terms, joined) {
				filtered = append(filtered, e)
			}
		}
		// A query matching nothing still needs candidates: unresolved
		// results suggest categories from whatever the corpus holds.
		if len(filtered) > 0 {
			pool = filtered
		}
	}

	if len(pool) > idx.maxCandidates {
		pool = pool[:idx.maxCandidates]
	}
	return pool, nil
}

// Size reports the number of entries in the active snapshot.
func (idx *Index) Size() int {
	snap := idx.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.entries)
}
