package validation

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidationApp(t *testing.T, cfg Config) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(Middleware(cfg))
	handler := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Post("/api/v1/diagnose", handler)
	app.Post("/api/v1/entries", handler)
	app.Get("/api/v1/entries", handler)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestDiagnoseRequiresSessionID(t *testing.T) {
	app := newValidationApp(t, Config{})

	resp := post(t, app, "/api/v1/diagnose", `{"text":"dripping faucet"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/diagnose", `{"session_id":"s1","text":"dripping faucet"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDiagnoseRejectsMalformedJSON(t *testing.T) {
	app := newValidationApp(t, Config{})

	resp := post(t, app, "/api/v1/diagnose", `{"session_id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiagnoseRejectsOversizedText(t *testing.T) {
	app := newValidationApp(t, Config{MaxTextLength: 50})

	long := strings.Repeat("drip ", 20)
	resp := post(t, app, "/api/v1/diagnose", `{"session_id":"s1","text":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiagnoseRejectsUnknownCategoryHint(t *testing.T) {
	app := newValidationApp(t, Config{})

	resp := post(t, app, "/api/v1/diagnose", `{"session_id":"s1","category_hint":"gardening"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/diagnose", `{"session_id":"s1","category_hint":"plumbing"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEntriesRejectsOversizedPayload(t *testing.T) {
	app := newValidationApp(t, Config{MaxManualSize: 64})

	resp := post(t, app, "/api/v1/entries", `{"html_content":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = post(t, app, "/api/v1/entries", `{"id":"e"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNonPostRequestsPassThrough(t *testing.T) {
	app := newValidationApp(t, Config{MaxManualSize: 8})

	req, err := http.NewRequest(http.MethodGet, "/api/v1/entries", nil)
	require.NoError(t, err)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
