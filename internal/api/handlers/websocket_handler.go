package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/session"
	"github.com/fixpal/backend/pkg/logger"
)

// WebSocketHandler serves interactive diagnosis sessions over a live
// connection, streaming the repair plan step by step.
type WebSocketHandler struct {
	sessions *session.Manager
}

func NewWebSocketHandler(sessions *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
	}
}

type wsMessage struct {
	Type             string `json:"type"`
	SessionID        string `json:"session_id"`
	Text             string `json:"text"`
	CategoryHint     string `json:"category_hint"`
	HasImageEvidence bool   `json:"has_image_evidence"`
	ImageDescriptor  string `json:"image_descriptor"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.SessionID == "" {
			h.sendError(c, "session_id is required")
			continue
		}

		switch msg.Type {
		case "diagnose":
			if err := h.streamDiagnosis(c, msg); err != nil {
				logger.Error("Failed to stream diagnosis", zap.Error(err))
				h.sendError(c, "Failed to process request")
			}
		case "reset":
			h.sessions.Reset(context.Background(), msg.SessionID)
			c.WriteJSON(map[string]interface{}{
				"type":       "reset",
				"session_id": msg.SessionID,
			})
		}
	}
}

func (h *WebSocketHandler) streamDiagnosis(c *websocket.Conn, msg wsMessage) error {
	engineReq, err := toEngineRequest(diagnoseRequest{
		SessionID:        msg.SessionID,
		Text:             msg.Text,
		CategoryHint:     msg.CategoryHint,
		HasImageEvidence: msg.HasImageEvidence,
		ImageDescriptor:  msg.ImageDescriptor,
	})
	if err != nil {
		h.sendError(c, err.Error())
		return nil
	}

	if err := c.WriteJSON(map[string]interface{}{
		"type":    "status",
		"content": "Analyzing symptoms...",
	}); err != nil {
		return err
	}

	startTime := time.Now()
	result, err := h.sessions.Submit(context.Background(), msg.SessionID, engineReq)
	if err != nil {
		h.sendError(c, "Could not produce a diagnosis")
		return nil
	}

	for i, step := range result.Steps {
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "step",
			"index":   i + 1,
			"content": step,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":   "complete",
		"result": diagnosisPayload(result, time.Since(startTime)),
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
