package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries []*Entry
	err     error
}

func (f *fakeStore) ListEntries(ctx context.Context) ([]*Entry, error) {
	return f.entries, f.err
}

func storeEntry(id string, cat Category, updated time.Time) *Entry {
	return &Entry{
		ID:        id,
		Category:  cat,
		Keywords:  []Keyword{{Term: "leak", Weight: 1}},
		Severity:  SeverityLow,
		Steps:     []string{"step one"},
		UpdatedAt: updated,
	}
}

func TestIndexLookupBeforeReload(t *testing.T) {
	idx := NewIndex(&fakeStore{}, 0)

	_, err := idx.Lookup(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Zero(t, idx.Size())
}

func TestIndexReloadStoreFailure(t *testing.T) {
	idx := NewIndex(&fakeStore{err: errors.New("disk gone")}, 0)

	err := idx.Reload(context.Background())
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestIndexReloadRejectsInvalidEntry(t *testing.T) {
	bad := storeEntry("bad", CategoryPlumbing, time.Now())
	bad.Steps = nil
	idx := NewIndex(&fakeStore{entries: []*Entry{bad}}, 0)

	assert.Error(t, idx.Reload(context.Background()))
}

func TestIndexReloadRejectsDuplicateIDs(t *testing.T) {
	now := time.Now()
	idx := NewIndex(&fakeStore{entries: []*Entry{
		storeEntry("dup", CategoryPlumbing, now),
		storeEntry("dup", CategoryHVAC, now),
	}}, 0)

	err := idx.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestIndexLookupByCategoryHints(t *testing.T) {
	now := time.Now()
	idx := NewIndex(&fakeStore{entries: []*Entry{
		storeEntry("p1", CategoryPlumbing, now),
		storeEntry("p2", CategoryPlumbing, now),
		storeEntry("h1", CategoryHVAC, now),
		storeEntry("e1", CategoryElectrical, now),
	}}, 0)
	require.NoError(t, idx.Reload(context.Background()))

	got, err := idx.Lookup(context.Background(), []Category{CategoryPlumbing}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = idx.Lookup(context.Background(), []Category{CategoryPlumbing, CategoryHVAC}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = idx.Lookup(context.Background(), []Category{CategoryCarpentry}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndexLookupFullCorpusTermFilter(t *testing.T) {
	now := time.Now()
	leaky := storeEntry("p1", CategoryPlumbing, now)
	grind := storeEntry("h1", CategoryHVAC, now)
	grind.Keywords = []Keyword{{Term: "grinding", Weight: 1}}
	idx := NewIndex(&fakeStore{entries: []*Entry{leaky, grind}}, 0)
	require.NoError(t, idx.Reload(context.Background()))

	got, err := idx.Lookup(context.Background(), nil, []string{"grinding", "noise"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "h1", got[0].ID)

	// No terms at all returns the whole corpus.
	got, err = idx.Lookup(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIndexLookupZeroOverlapKeepsCorpus(t *testing.T) {
	now := time.Now()
	idx := NewIndex(&fakeStore{entries: []*Entry{
		storeEntry("p1", CategoryPlumbing, now),
		storeEntry("h1", CategoryHVAC, now),
	}}, 0)
	require.NoError(t, idx.Reload(context.Background()))

	// Terms matching no entry must not empty the candidate set; the ranker
	// scores them zero and the assembler still gets categories to suggest.
	got, err := idx.Lookup(context.Background(), nil, []string{"purple", "elephant"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIndexLookupCandidateCap(t *testing.T) {
	var entries []*Entry
	base := time.Now()
	for i := 0; i < 30; i++ {
		entries = append(entries, storeEntry(fmt.Sprintf("e-%02d", i), CategoryPlumbing, base.Add(time.Duration(i)*time.Minute)))
	}
	idx := NewIndex(&fakeStore{entries: entries}, 10)
	require.NoError(t, idx.Reload(context.Background()))

	got, err := idx.Lookup(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 10)
	// The cap keeps the most recently updated entries.
	assert.Equal(t, "e-29", got[0].ID)
	assert.Equal(t, "e-20", got[9].ID)
}

func TestIndexReloadSwapsSnapshot(t *testing.T) {
	store := &fakeStore{entries: []*Entry{storeEntry("a", CategoryPlumbing, time.Now())}}
	idx := NewIndex(store, 0)
	require.NoError(t, idx.Reload(context.Background()))
	assert.Equal(t, 1, idx.Size())

	store.entries = append(store.entries, storeEntry("b", CategoryHVAC, time.Now()))
	require.NoError(t, idx.Reload(context.Background()))
	assert.Equal(t, 2, idx.Size())

	// A failed reload leaves the previous snapshot serving.
	store.err = errors.New("store down")
	assert.Error(t, idx.Reload(context.Background()))
	assert.Equal(t, 2, idx.Size())
}

func TestIndexLookupCancelledContext(t *testing.T) {
	idx := NewIndex(&fakeStore{entries: []*Entry{storeEntry("a", CategoryPlumbing, time.Now())}}, 0)
	require.NoError(t, idx.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.Lookup(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
