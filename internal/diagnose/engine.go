package diagnose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/metrics"
	"github.com/fixpal/backend/internal/normalize"
	"github.com/fixpal/backend/pkg/circuitbreaker"
	"github.com/fixpal/backend/pkg/logger"
	"github.com/fixpal/backend/pkg/retry"
	"github.com/fixpal/backend/pkg/utils"
)

// Request is one raw diagnosis request before normalization.
type Request struct {
	Text             string
	CategoryHint     *knowledge.Category
	HasImageEvidence bool
	ImageDescriptor  string
}

// ResultCache stores assembled results keyed by canonical query hash.
// Implementations must tolerate concurrent use; a nil cache disables caching.
type ResultCache interface {
	GetResult(ctx context.Context, key string, out interface{}) (bool, error)
	SetResult(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EngineConfig bounds the lookup path.
type EngineConfig struct {
	LookupTimeout time.Duration
	CacheTTL      time.Duration
}

// Engine runs the stateless diagnosis pipeline: normalize, candidate lookup,
// rank, assemble. Session bookkeeping lives above it in the session manager.
type Engine struct {
	normalizer *normalize.Normalizer
	index      *knowledge.Index
	ranker     *Ranker
	assembler  *Assembler
	cache      ResultCache
	breaker    *circuitbreaker.CircuitBreaker
	cfg        EngineConfig
}

func NewEngine(index *knowledge.Index, ranker *Ranker, cache ResultCache, cfg EngineConfig) *Engine {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Engine{
		normalizer: normalize.New(),
		index:      index,
		ranker:     ranker,
		assembler:  NewAssembler(),
		cache:      cache,
		breaker: circuitbreaker.NewCircuitBreaker("knowledge-lookup", circuitbreaker.Config{
			Logger: logger.Log,
		}),
		cfg: cfg,
	}
}

// Diagnose runs one request through the full pipeline. The returned query is
// the normalized form, handed back so callers can record it alongside the
// result. Errors are ErrValidation (bad request) or ErrServiceUnavailable
// (lookup failure); an unresolved diagnosis is a normal result, not an error.
func (e *Engine) Diagnose(ctx context.Context, req Request) (Result, normalize.Query, error) {
	startTime := time.Now()
	diagnosisID := uuid.New().String()

	query, err := e.normalizer.Normalize(req.Text, req.CategoryHint, req.HasImageEvidence, req.ImageDescriptor)
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues("invalid").Inc()
		return Result{}, normalize.Query{}, err
	}

	logger.Info("Processing diagnosis request",
		zap.String("diagnosis_id", diagnosisID),
		zap.String("text", query.Text),
		zap.Int("hints", len(query.CategoryHints)),
		zap.Bool("image_evidence", query.HasImageEvidence),
	)

	cacheKey := queryHash(query)
	if e.cache != nil {
		var cached Result
		hit, err := e.cache.GetResult(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Result cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("result").Inc()
			// Cached answers are still diagnoses; keep the status-labeled
			// totals and latency honest once the cache warms.
			metrics.DiagnosesTotal.WithLabelValues(statusLabel(cached)).Inc()
			metrics.DiagnosisDuration.WithLabelValues(statusLabel(cached)).Observe(time.Since(startTime).Seconds())
			return cached, query, nil
		}
		metrics.CacheMisses.WithLabelValues("result").Inc()
	}

	candidates, err := e.lookup(ctx, query)
	if err != nil {
		metrics.DiagnosesTotal.WithLabelValues("unavailable").Inc()
		return Result{}, query, err
	}

	ranked := e.ranker.Rank(query, candidates)
	result := e.assembler.Assemble(ranked)

	e.observe(result, startTime)

	if e.cache != nil {
		if err := e.cache.SetResult(ctx, cacheKey, result, e.cfg.CacheTTL); err != nil {
			logger.Warn("Result cache write failed", zap.Error(err))
		}
	}

	logger.Info("Diagnosis complete",
		zap.String("diagnosis_id", diagnosisID),
		zap.Bool("resolved", result.Resolved),
		zap.Int("confidence", result.Confidence),
		zap.Int("candidates", len(candidates)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return result, query, nil
}

// lookup fetches the candidate set through the circuit breaker with a bounded
// timeout and retry. Breaker-open and timeout conditions both surface as
// ErrServiceUnavailable.
func (e *Engine) lookup(ctx context.Context, q normalize.Query) ([]*knowledge.Entry, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
	defer cancel()

	var candidates []*knowledge.Entry
	err := e.breaker.Execute(lookupCtx, func() error {
		return retry.Do(lookupCtx, retry.Config{MaxAttempts: 2, Logger: logger.Log}, func() error {
			var lookupErr error
			candidates, lookupErr = e.index.Lookup(lookupCtx, q.CategoryHints, q.Terms)
			return lookupErr
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", knowledge.ErrServiceUnavailable, err)
		}
		return nil, err
	}
	return candidates, nil
}

func (e *Engine) observe(result Result, startTime time.Time) {
	metrics.DiagnosisDuration.WithLabelValues(statusLabel(result)).Observe(time.Since(startTime).Seconds())
	metrics.DiagnosesTotal.WithLabelValues(statusLabel(result)).Inc()
	if result.Resolved {
		metrics.ConfidenceScore.Observe(float64(result.Confidence))
	} else {
		metrics.UnresolvedTotal.Inc()
	}
}

func statusLabel(result Result) string {
	if result.Resolved {
		return "resolved"
	}
	return "unresolved"
}

// queryHash canonicalizes the normalized query into a stable cache key.
func queryHash(q normalize.Query) string {
	hints := make([]string, 0, len(q.CategoryHints))
	for _, h := range q.CategoryHints {
		hints = append(hints, string(h))
	}
	canonical := fmt.Sprintf("%s|%s|%t|%s",
		q.Text, strings.Join(hints, ","), q.HasImageEvidence, q.ImageDescriptor)
	return utils.HashString(canonical)
}
