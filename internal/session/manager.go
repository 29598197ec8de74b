package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/diagnose"
	"github.com/fixpal/backend/internal/normalize"
	"github.com/fixpal/backend/pkg/logger"
)

// Exchange is one (query, result) pair in a session's history.
type Exchange struct {
	Query     normalize.Query
	Result    diagnose.Result
	CreatedAt time.Time
}

// HistoryStore persists exchanges across restarts. The in-memory record stays
// authoritative; persistence is write-through and best-effort. A nil store
// keeps the manager purely in memory.
type HistoryStore interface {
	AppendExchange(ctx context.Context, sessionID string, seq int, ex Exchange) error
	ClearSession(ctx context.Context, sessionID string) error
	LoadSession(ctx context.Context, sessionID string) ([]Exchange, error)
}

// record is the state owned by one conversation. Its mutex serializes submit
// and reset so interleaved appends cannot produce out-of-order history.
type record struct {
	mu      sync.Mutex
	history []Exchange
	pending *diagnose.Result
}

// Manager owns all session records and orchestrates the diagnosis pipeline
// per request. Different sessions operate fully independently.
type Manager struct {
	engine *diagnose.Engine
	store  HistoryStore

	mu       sync.RWMutex
	sessions map[string]*record
}

func NewManager(engine *diagnose.Engine, store HistoryStore) *Manager {
	return &Manager{
		engine:   engine,
		store:    store,
		sessions: make(map[string]*record),
	}
}

func (m *Manager) session(id string) *record {
	m.mu.RLock()
	rec, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return rec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok = m.sessions[id]; ok {
		return rec
	}
	rec = &record{}
	if m.store != nil {
		// First sight of this session id in-process; restore any history
		// persisted by a previous run.
		history, err := m.store.LoadSession(context.Background(), id)
		if err != nil {
			logger.Warn("Failed to restore session history",
				zap.String("session_id", id),
				zap.Error(err),
			)
		} else if len(history) > 0 {
			rec.history = history
			last := history[len(history)-1].Result
			rec.pending = &last
		}
	}
	m.sessions[id] = rec
	return rec
}

// Submit runs one request through the engine and, on success, appends the
// exchange to the session's history and sets it as the pending result. The
// whole operation is atomic with respect to other submits and resets on the
// same session.
func (m *Manager) Submit(ctx context.Context, sessionID string, req diagnose.Request) (diagnose.Result, error) {
	rec := m.session(sessionID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	result, query, err := m.engine.Diagnose(ctx, req)
	if err != nil {
		return diagnose.Result{}, err
	}

	ex := Exchange{
		Query:     query,
		Result:    result,
		CreatedAt: time.Now(),
	}
	rec.history = append(rec.history, ex)
	rec.pending = &result

	if m.store != nil {
		if err := m.store.AppendExchange(ctx, sessionID, len(rec.history), ex); err != nil {
			logger.Warn("Failed to persist exchange",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// Reset empties the session's history and clears the pending result.
// Idempotent: resetting an unknown or already-empty session is a no-op.
func (m *Manager) Reset(ctx context.Context, sessionID string) {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if ok {
		rec.mu.Lock()
		rec.history = nil
		rec.pending = nil
		rec.mu.Unlock()
	}

	if m.store != nil {
		if err := m.store.ClearSession(ctx, sessionID); err != nil {
			logger.Warn("Failed to clear persisted session",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
}

// History returns a copy of the session's exchanges in arrival order. Ids not
// seen in-process are answered straight from the store without allocating a
// record, so history reads cannot grow the session map unboundedly.
func (m *Manager) History(sessionID string) []Exchange {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		out := make([]Exchange, len(rec.history))
		copy(out, rec.history)
		return out
	}

	if m.store == nil {
		return nil
	}
	history, err := m.store.LoadSession(context.Background(), sessionID)
	if err != nil {
		logger.Warn("Failed to load session history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil
	}
	return history
}

// Pending returns the session's current pending result, or nil.
func (m *Manager) Pending(sessionID string) *diagnose.Result {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.pending == nil {
		return nil
	}
	out := *rec.pending
	return &out
}
