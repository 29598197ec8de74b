package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpal/backend/internal/diagnose"
	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/session"
)

type memStore struct {
	entries []*knowledge.Entry
}

func (m *memStore) ListEntries(ctx context.Context) ([]*knowledge.Entry, error) {
	return m.entries, nil
}

func corpusEntry() *knowledge.Entry {
	return &knowledge.Entry{
		ID:       "fix-faucet",
		Category: knowledge.CategoryPlumbing,
		Keywords: []knowledge.Keyword{
			{Term: "faucet", Weight: 0.6},
			{Term: "dripping", Weight: 0.4},
		},
		Severity:         knowledge.SeverityLow,
		SafetyLevel:      knowledge.SafetyNone,
		EstimatedMinutes: 30,
		Steps:            []string{"Shut off the water", "Replace the cartridge"},
		Tools:            []string{"adjustable wrench"},
		Parts:            []knowledge.Part{{Name: "cartridge", PriceLow: 15, PriceHigh: 40}},
		UpdatedAt:        time.Now(),
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	idx := knowledge.NewIndex(&memStore{entries: []*knowledge.Entry{corpusEntry()}}, 0)
	require.NoError(t, idx.Reload(context.Background()))
	engine := diagnose.NewEngine(idx, diagnose.NewRanker(diagnose.DefaultRankerConfig()), nil, diagnose.EngineConfig{})
	sessions := session.NewManager(engine, nil)
	h := NewDiagnoseHandler(sessions)

	app := fiber.New()
	app.Post("/api/v1/diagnose", h.HandleDiagnose)
	app.Get("/api/v1/sessions/:id/history", h.GetHistory)
	app.Post("/api/v1/sessions/:id/reset", h.ResetSession)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return body
}

func TestHandleDiagnoseResolved(t *testing.T) {
	app := newTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id": "s1",
		"text":       "my faucet keeps dripping",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, "fix-faucet", body["entry_id"])
	assert.GreaterOrEqual(t, body["confidence"].(float64), 40.0)
	assert.Len(t, body["steps"], 2)

	parts := body["parts"].([]interface{})
	require.Len(t, parts, 1)
	part := parts[0].(map[string]interface{})
	assert.Equal(t, "cartridge", part["name"])
	assert.Equal(t, 15.0, part["price_range_low"])
	assert.Equal(t, 40.0, part["price_range_high"])
}

func TestHandleDiagnoseUnresolvedOmitsPlan(t *testing.T) {
	app := newTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id": "s1",
		"text":       "purple elephant tuesday",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, false, body["resolved"])
	assert.NotContains(t, body, "steps")
	assert.NotContains(t, body, "entry_id")
	assert.Equal(t, []interface{}{"plumbing"}, body["suggested_categories"])
}

func TestHandleDiagnoseMissingSessionID(t *testing.T) {
	app := newTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"text": "dripping faucet",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "session_id")
}

func TestHandleDiagnoseEmptyRequestIsBadRequest(t *testing.T) {
	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id": "s1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleDiagnoseUnknownHint(t *testing.T) {
	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id":    "s1",
		"text":          "dripping faucet",
		"category_hint": "gardening",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleDiagnoseServiceUnavailable(t *testing.T) {
	idx := knowledge.NewIndex(&memStore{}, 0)
	// Corpus never loaded: lookups must surface as 503 with a retry flag.
	engine := diagnose.NewEngine(idx, diagnose.NewRanker(diagnose.DefaultRankerConfig()), nil, diagnose.EngineConfig{})
	h := NewDiagnoseHandler(session.NewManager(engine, nil))

	app := fiber.New()
	app.Post("/api/v1/diagnose", h.HandleDiagnose)

	resp, body := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id": "s1",
		"text":       "dripping faucet",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, true, body["retry"])
}

func TestGetHistoryReturnsExchanges(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 2; i++ {
		resp, _ := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
			"session_id": "s1",
			"text":       fmt.Sprintf("dripping faucet number %d", i),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := getJSON(t, app, "/api/v1/sessions/s1/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", body["session_id"])
	assert.Len(t, body["history"], 2)
}

func TestResetSessionClearsHistory(t *testing.T) {
	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/diagnose", map[string]interface{}{
		"session_id": "s1",
		"text":       "dripping faucet",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, app, "/api/v1/sessions/s1/reset", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["reset"])

	resp, body = getJSON(t, app, "/api/v1/sessions/s1/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["history"], 0)
}
