package diagnose

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/metrics"
	"github.com/fixpal/backend/internal/normalize"
)

type memStore struct {
	entries []*knowledge.Entry
}

func (m *memStore) ListEntries(ctx context.Context) ([]*knowledge.Entry, error) {
	return m.entries, nil
}

type memCache struct {
	results map[string]Result
	hits    int
	sets    int
}

func newMemCache() *memCache {
	return &memCache{results: make(map[string]Result)}
}

func (m *memCache) GetResult(ctx context.Context, key string, out interface{}) (bool, error) {
	result, ok := m.results[key]
	if !ok {
		return false, nil
	}
	m.hits++
	*out.(*Result) = result
	return true, nil
}

func (m *memCache) SetResult(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	m.results[key] = value.(Result)
	return nil
}

func newTestEngine(t *testing.T, entries []*knowledge.Entry, cache ResultCache) *Engine {
	t.Helper()
	idx := knowledge.NewIndex(&memStore{entries: entries}, 0)
	require.NoError(t, idx.Reload(context.Background()))
	return NewEngine(idx, NewRanker(DefaultRankerConfig()), cache, EngineConfig{})
}

func TestEngineDiagnoseResolved(t *testing.T) {
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, nil)

	result, query, err := e.Diagnose(context.Background(), Request{
		Text: "grinding noise from the condenser fan",
	})
	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.Equal(t, "hvac-condenser-fan", result.EntryID)
	assert.GreaterOrEqual(t, result.Confidence, 80)
	assert.NotEmpty(t, result.Steps)
	assert.Contains(t, query.CategoryHints, knowledge.CategoryHVAC)
}

func TestEngineDiagnoseUnresolved(t *testing.T) {
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, nil)

	result, _, err := e.Diagnose(context.Background(), Request{
		Text: "purple elephant refuses tuesday",
	})
	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.Empty(t, result.Steps)
	// A non-empty corpus always yields category suggestions, even with zero
	// term overlap.
	assert.Equal(t, []knowledge.Category{knowledge.CategoryHVAC}, result.SuggestedCategories)
}

func TestEngineDiagnoseValidationError(t *testing.T) {
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, nil)

	_, _, err := e.Diagnose(context.Background(), Request{})
	assert.ErrorIs(t, err, normalize.ErrValidation)
}

func TestEngineDiagnoseCorpusNotLoaded(t *testing.T) {
	idx := knowledge.NewIndex(&memStore{}, 0)
	e := NewEngine(idx, NewRanker(DefaultRankerConfig()), nil, EngineConfig{})

	_, _, err := e.Diagnose(context.Background(), Request{Text: "leaking faucet"})
	assert.ErrorIs(t, err, knowledge.ErrServiceUnavailable)
}

func TestEngineDiagnoseCachesResults(t *testing.T) {
	cache := newMemCache()
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, cache)

	req := Request{Text: "grinding condenser fan"}

	first, _, err := e.Diagnose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Zero(t, cache.hits)

	second, _, err := e.Diagnose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)
}

func TestEngineCountsCachedDiagnoses(t *testing.T) {
	cache := newMemCache()
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, cache)

	resolved := metrics.DiagnosesTotal.WithLabelValues("resolved")
	before := testutil.ToFloat64(resolved)

	req := Request{Text: "grinding condenser fan"}
	_, _, err := e.Diagnose(context.Background(), req)
	require.NoError(t, err)
	_, _, err = e.Diagnose(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, cache.hits)
	// The cache-hit request counts toward the total like any other.
	assert.Equal(t, before+2, testutil.ToFloat64(resolved))
}

func TestEngineCacheKeyVariesWithHint(t *testing.T) {
	cache := newMemCache()
	e := newTestEngine(t, []*knowledge.Entry{condenserFanEntry()}, cache)

	_, _, err := e.Diagnose(context.Background(), Request{Text: "strange rattle"})
	require.NoError(t, err)

	hint := knowledge.CategoryHVAC
	_, _, err = e.Diagnose(context.Background(), Request{Text: "strange rattle", CategoryHint: &hint})
	require.NoError(t, err)

	assert.Equal(t, 2, cache.sets)
	assert.Zero(t, cache.hits)
}
