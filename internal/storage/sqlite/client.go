package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/session"
	"github.com/fixpal/backend/internal/storage/models"
	"github.com/fixpal/backend/pkg/logger"
)

// Client wraps the sqlite database holding the knowledge corpus, ingested
// manual bookkeeping, and persisted session history. It implements
// knowledge.Store and session.HistoryStore.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		keywords TEXT NOT NULL,
		severity TEXT NOT NULL,
		safety_level TEXT NOT NULL,
		safety_warning TEXT,
		estimated_minutes INTEGER NOT NULL,
		steps TEXT NOT NULL,
		tools TEXT,
		parts TEXT,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_category ON knowledge_entries(category);
	CREATE INDEX IF NOT EXISTS idx_entries_updated ON knowledge_entries(updated_at);

	CREATE TABLE IF NOT EXISTS ingested_manuals (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT,
		entry_id TEXT,
		ingested_at INTEGER NOT NULL,
		FOREIGN KEY (entry_id) REFERENCES knowledge_entries(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_manuals_source ON ingested_manuals(source_url);

	CREATE TABLE IF NOT EXISTS session_history (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		query TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_history_session ON session_history(session_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertEntry upserts one knowledge entry.
func (c *Client) InsertEntry(ctx context.Context, e *knowledge.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	keywordsJSON, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	stepsJSON, err := json.Marshal(e.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	toolsJSON, err := json.Marshal(e.Tools)
	if err != nil {
		return fmt.Errorf("failed to marshal tools: %w", err)
	}
	partsJSON, err := json.Marshal(e.Parts)
	if err != nil {
		return fmt.Errorf("failed to marshal parts: %w", err)
	}

	query := `
		INSERT INTO knowledge_entries (id, category, keywords, severity, safety_level,
			safety_warning, estimated_minutes, steps, tools, parts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			keywords = excluded.keywords,
			severity = excluded.severity,
			safety_level = excluded.safety_level,
			safety_warning = excluded.safety_warning,
			estimated_minutes = excluded.estimated_minutes,
			steps = excluded.steps,
			tools = excluded.tools,
			parts = excluded.parts,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		e.ID,
		string(e.Category),
		string(keywordsJSON),
		string(e.Severity),
		string(e.SafetyLevel),
		e.SafetyWarning,
		e.EstimatedMinutes,
		string(stepsJSON),
		string(toolsJSON),
		string(partsJSON),
		e.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	logger.Debug("Knowledge entry stored", zap.String("entry_id", e.ID), zap.String("category", string(e.Category)))
	return nil
}

// ListEntries loads the full corpus. Implements knowledge.Store.
func (c *Client) ListEntries(ctx context.Context) ([]*knowledge.Entry, error) {
	query := `
		SELECT id, category, keywords, severity, safety_level, safety_warning,
			estimated_minutes, steps, tools, parts, updated_at
		FROM knowledge_entries
		ORDER BY updated_at DESC, id ASC
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*knowledge.Entry
	for rows.Next() {
		var e knowledge.Entry
		var category, severity, safetyLevel string
		var keywordsJSON, stepsJSON, toolsJSON, partsJSON string
		var updatedAt int64

		err := rows.Scan(
			&e.ID,
			&category,
			&keywordsJSON,
			&severity,
			&safetyLevel,
			&e.SafetyWarning,
			&e.EstimatedMinutes,
			&stepsJSON,
			&toolsJSON,
			&partsJSON,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}

		e.Category = knowledge.Category(category)
		e.Severity = knowledge.Severity(severity)
		e.SafetyLevel = knowledge.SafetyLevel(safetyLevel)
		e.UpdatedAt = time.Unix(updatedAt, 0)

		if err := json.Unmarshal([]byte(keywordsJSON), &e.Keywords); err != nil {
			return nil, fmt.Errorf("entry %s: failed to unmarshal keywords: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(stepsJSON), &e.Steps); err != nil {
			return nil, fmt.Errorf("entry %s: failed to unmarshal steps: %w", e.ID, err)
		}
		if toolsJSON != "" {
			if err := json.Unmarshal([]byte(toolsJSON), &e.Tools); err != nil {
				return nil, fmt.Errorf("entry %s: failed to unmarshal tools: %w", e.ID, err)
			}
		}
		if partsJSON != "" {
			if err := json.Unmarshal([]byte(partsJSON), &e.Parts); err != nil {
				return nil, fmt.Errorf("entry %s: failed to unmarshal parts: %w", e.ID, err)
			}
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry rows: %w", err)
	}

	return entries, nil
}

// InsertManual records the provenance of an ingested manual.
func (c *Client) InsertManual(ctx context.Context, m models.Manual) error {
	query := `
		INSERT OR REPLACE INTO ingested_manuals (id, source_url, title, category, entry_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		m.ID,
		m.SourceURL,
		m.Title,
		m.Category,
		m.EntryID,
		m.IngestedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert manual: %w", err)
	}

	logger.Info("Manual recorded",
		zap.String("manual_id", m.ID),
		zap.String("source_url", m.SourceURL),
	)
	return nil
}

// AppendExchange persists one session exchange. Implements session.HistoryStore.
func (c *Client) AppendExchange(ctx context.Context, sessionID string, seq int, ex session.Exchange) error {
	queryJSON, err := json.Marshal(ex.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	resultJSON, err := json.Marshal(ex.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	stmt := `INSERT OR REPLACE INTO session_history (session_id, seq, query, result, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err = c.db.ExecContext(ctx, stmt,
		sessionID,
		seq,
		string(queryJSON),
		string(resultJSON),
		ex.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}

	return nil
}

// ClearSession deletes all persisted history for a session. Implements
// session.HistoryStore.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM session_history WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// LoadSession restores a session's exchanges in arrival order. Implements
// session.HistoryStore.
func (c *Client) LoadSession(ctx context.Context, sessionID string) ([]session.Exchange, error) {
	query := `SELECT query, result, created_at FROM session_history WHERE session_id = ? ORDER BY seq ASC`

	rows, err := c.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	var exchanges []session.Exchange
	for rows.Next() {
		var queryJSON, resultJSON string
		var createdAt int64

		if err := rows.Scan(&queryJSON, &resultJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange row: %w", err)
		}

		var ex session.Exchange
		if err := json.Unmarshal([]byte(queryJSON), &ex.Query); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query: %w", err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &ex.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		ex.CreatedAt = time.Unix(createdAt, 0)
		exchanges = append(exchanges, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchange rows: %w", err)
	}

	return exchanges, nil
}
