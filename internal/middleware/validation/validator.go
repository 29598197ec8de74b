package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/knowledge"
)

type Config struct {
	MaxTextLength int
	MaxManualSize int
	Logger        *zap.Logger
}

// Middleware enforces body-level request hygiene on the diagnose and entry
// endpoints before handlers run: length caps and category tag validity.
// Signal presence (text vs image vs hint) is the normalizer's concern, not
// enforced here.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 5000
	}
	if cfg.MaxManualSize == 0 {
		cfg.MaxManualSize = 2 * 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		path := c.Path()

		if strings.HasSuffix(path, "/diagnose") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			sessionID, _ := req["session_id"].(string)
			if sessionID == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "session_id is required",
				})
			}

			if text, ok := req["text"].(string); ok && len(text) > cfg.MaxTextLength {
				cfg.Logger.Warn("Oversized diagnosis text rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(text)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Text exceeds maximum length",
				})
			}

			if hint, ok := req["category_hint"].(string); ok && hint != "" {
				if _, err := knowledge.ParseCategory(hint); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Unknown category_hint",
					})
				}
			}
		}

		if strings.HasSuffix(path, "/entries") {
			if len(c.Body()) > cfg.MaxManualSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Entry payload exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}
