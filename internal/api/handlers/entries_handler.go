package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/ingestion"
	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/pkg/logger"
)

type EntriesHandler struct {
	processor *ingestion.Processor
	store     knowledge.Store
}

func NewEntriesHandler(processor *ingestion.Processor, store knowledge.Store) *EntriesHandler {
	return &EntriesHandler{
		processor: processor,
		store:     store,
	}
}

type entryRequest struct {
	// Manual ingestion path.
	SourceURL   string `json:"source_url"`
	HTMLContent string `json:"html_content"`

	// Direct entry path.
	ID               string        `json:"id"`
	Category         string        `json:"category"`
	Keywords         []keywordJSON `json:"keywords"`
	Severity         string        `json:"severity"`
	SafetyLevel      string        `json:"safety_level"`
	SafetyWarning    string        `json:"safety_warning"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	Steps            []string      `json:"steps"`
	Tools            []string      `json:"tools"`
	Parts            []partJSON    `json:"parts"`
}

type keywordJSON struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

type partJSON struct {
	Name      string  `json:"name"`
	PriceLow  float64 `json:"price_range_low"`
	PriceHigh float64 `json:"price_range_high"`
}

// CreateEntry accepts either an HTML manual (source_url + html_content) to
// ingest, or a fully structured knowledge entry to publish directly.
func (h *EntriesHandler) CreateEntry(c *fiber.Ctx) error {
	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.HTMLContent != "" {
		if req.SourceURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "source_url is required with html_content",
			})
		}

		entry, err := h.processor.IngestManual(c.Context(), req.SourceURL, req.HTMLContent)
		if err != nil {
			logger.Error("Failed to ingest manual", zap.Error(err))
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"entry_id": entry.ID,
			"category": entry.Category,
			"steps":    len(entry.Steps),
		})
	}

	entry, err := req.toEntry()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.processor.Publish(c.Context(), entry); err != nil {
		logger.Error("Failed to publish entry", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"entry_id": entry.ID,
		"category": entry.Category,
	})
}

func (h *EntriesHandler) ListEntries(c *fiber.Ctx) error {
	entries, err := h.store.ListEntries(c.Context())
	if err != nil {
		logger.Error("Failed to list entries", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Knowledge base temporarily unavailable",
			"retry": true,
		})
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"id":                e.ID,
			"category":          e.Category,
			"severity":          e.Severity,
			"safety_level":      e.SafetyLevel,
			"estimated_minutes": e.EstimatedMinutes,
			"steps":             len(e.Steps),
			"updated_at":        e.UpdatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(items),
		"entries": items,
	})
}

func (r *entryRequest) toEntry() (*knowledge.Entry, error) {
	category, err := knowledge.ParseCategory(r.Category)
	if err != nil {
		return nil, err
	}

	keywords := make([]knowledge.Keyword, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		keywords = append(keywords, knowledge.Keyword{Term: kw.Term, Weight: kw.Weight})
	}

	parts := make([]knowledge.Part, 0, len(r.Parts))
	for _, p := range r.Parts {
		parts = append(parts, knowledge.Part{Name: p.Name, PriceLow: p.PriceLow, PriceHigh: p.PriceHigh})
	}

	severity := knowledge.Severity(r.Severity)
	if severity == "" {
		severity = knowledge.SeverityMedium
	}
	safetyLevel := knowledge.SafetyLevel(r.SafetyLevel)
	if safetyLevel == "" {
		safetyLevel = knowledge.SafetyNone
	}

	entry := &knowledge.Entry{
		ID:               r.ID,
		Category:         category,
		Keywords:         keywords,
		Severity:         severity,
		SafetyLevel:      safetyLevel,
		SafetyWarning:    r.SafetyWarning,
		EstimatedMinutes: r.EstimatedMinutes,
		Steps:            r.Steps,
		Tools:            r.Tools,
		Parts:            parts,
		UpdatedAt:        time.Now(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}
