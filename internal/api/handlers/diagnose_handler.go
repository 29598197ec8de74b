package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/diagnose"
	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/normalize"
	"github.com/fixpal/backend/internal/session"
	"github.com/fixpal/backend/pkg/logger"
)

type DiagnoseHandler struct {
	sessions *session.Manager
}

func NewDiagnoseHandler(sessions *session.Manager) *DiagnoseHandler {
	return &DiagnoseHandler{
		sessions: sessions,
	}
}

// diagnoseRequest is the transport form of one diagnosis submission.
type diagnoseRequest struct {
	SessionID        string `json:"session_id"`
	Text             string `json:"text"`
	CategoryHint     string `json:"category_hint"`
	HasImageEvidence bool   `json:"has_image_evidence"`
	ImageDescriptor  string `json:"image_descriptor"`
}

func (h *DiagnoseHandler) HandleDiagnose(c *fiber.Ctx) error {
	var req diagnoseRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	engineReq, err := toEngineRequest(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	startTime := time.Now()
	result, err := h.sessions.Submit(c.Context(), req.SessionID, engineReq)
	if err != nil {
		return writeDiagnoseError(c, err)
	}

	return c.JSON(diagnosisPayload(result, time.Since(startTime)))
}

func (h *DiagnoseHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session id is required",
		})
	}

	history := h.sessions.History(sessionID)
	items := make([]fiber.Map, 0, len(history))
	for _, ex := range history {
		items = append(items, fiber.Map{
			"text":               ex.Query.Text,
			"category_hints":     ex.Query.CategoryHints,
			"has_image_evidence": ex.Query.HasImageEvidence,
			"result":             diagnosisPayload(ex.Result, 0),
			"created_at":         ex.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    items,
	})
}

func (h *DiagnoseHandler) ResetSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session id is required",
		})
	}

	h.sessions.Reset(c.Context(), sessionID)
	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"reset":      true,
	})
}

func toEngineRequest(req diagnoseRequest) (diagnose.Request, error) {
	out := diagnose.Request{
		Text:             req.Text,
		HasImageEvidence: req.HasImageEvidence,
		ImageDescriptor:  req.ImageDescriptor,
	}
	if req.CategoryHint != "" {
		cat, err := knowledge.ParseCategory(req.CategoryHint)
		if err != nil {
			return diagnose.Request{}, err
		}
		out.CategoryHint = &cat
	}
	return out, nil
}

// writeDiagnoseError distinguishes bad requests from backend unavailability
// so the caller can choose between asking for more detail and retrying later.
func writeDiagnoseError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, normalize.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Request must include text, image evidence, or a category hint",
		})
	case errors.Is(err, knowledge.ErrServiceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Knowledge base temporarily unavailable",
			"retry": true,
		})
	default:
		logger.Error("Failed to process diagnosis", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process request",
		})
	}
}

// diagnosisPayload shapes a result for the wire. Confidence and plan fields
// are present only on resolved results; suggested categories only otherwise.
func diagnosisPayload(result diagnose.Result, latency time.Duration) fiber.Map {
	payload := fiber.Map{
		"resolved": result.Resolved,
	}
	if latency > 0 {
		payload["latency_ms"] = latency.Milliseconds()
	}

	if !result.Resolved {
		payload["suggested_categories"] = result.SuggestedCategories
		return payload
	}

	parts := make([]fiber.Map, 0, len(result.Parts))
	for _, p := range result.Parts {
		parts = append(parts, fiber.Map{
			"name":             p.Name,
			"price_range_low":  p.PriceLow,
			"price_range_high": p.PriceHigh,
		})
	}

	payload["entry_id"] = result.EntryID
	payload["confidence"] = result.Confidence
	payload["severity"] = result.Severity
	payload["safety_level"] = result.SafetyLevel
	payload["safety_warning"] = result.SafetyWarning
	payload["estimated_minutes"] = result.EstimatedMinutes
	payload["steps"] = result.Steps
	payload["tools"] = result.Tools
	payload["parts"] = parts
	payload["matched_terms"] = result.MatchedTerms
	return payload
}
