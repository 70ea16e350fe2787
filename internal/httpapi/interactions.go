package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
)

type interactionRequest struct {
	UserID     string  `json:"user_id"`
	Type       string  `json:"type"`
	Source     string  `json:"source"`
	OccurredAt *string `json:"occurred_at"`
}

var validInteractionTypes = map[string]struct{}{
	db.InteractionView:         {},
	db.InteractionFavourite:    {},
	db.InteractionUnfavourite:  {},
	db.InteractionClickthrough: {},
}

func (s *Server) handleInteraction(c echo.Context) error {
	eventID := strings.TrimSpace(c.Param("event_id"))
	if eventID == "" {
		return failValidation(c, map[string]string{"event_id": "is required"})
	}

	var req interactionRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	fieldErrors := map[string]string{}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		fieldErrors["user_id"] = "is required"
	}
	interactionType := strings.TrimSpace(strings.ToLower(req.Type))
	if _, ok := validInteractionTypes[interactionType]; !ok {
		fieldErrors["type"] = "must be one of view, favourite, unfavourite, clickthrough"
	}
	occurredAt := globaltime.UTC()
	if req.OccurredAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.OccurredAt))
		if err != nil {
			fieldErrors["occurred_at"] = "must be RFC3339"
		} else {
			occurredAt = parsed.UTC()
		}
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	ctx := c.Request().Context()
	if _, err := s.pool.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Event not found")
		}
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("get event failed")
		return internalError(c, "Failed to load event")
	}

	interaction := &db.UserInteraction{
		UserID:     userID,
		EventID:    eventID,
		Type:       interactionType,
		Source:     strings.TrimSpace(strings.ToLower(req.Source)),
		OccurredAt: occurredAt,
	}
	if err := s.pool.InsertInteraction(ctx, interaction); err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Str("user_id", userID).Msg("insert interaction failed")
		return internalError(c, "Failed to record interaction")
	}
	if err := s.pool.IncrementEngagement(ctx, eventID, interactionType); err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Str("type", interactionType).Msg("increment engagement failed")
		return internalError(c, "Failed to record interaction")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"event_id":    eventID,
		"user_id":     userID,
		"type":        interactionType,
		"occurred_at": occurredAt,
	})
}

type ingestRequest struct {
	Payloads []json.RawMessage `json:"payloads"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	if len(req.Payloads) == 0 {
		return failValidation(c, map[string]string{"payloads": "must not be empty"})
	}

	result := s.ingester.IngestBatch(c.Request().Context(), req.Payloads)
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"received": result.Received,
		"created":  result.Created,
		"updated":  result.Updated,
		"rejected": result.Rejected,
	})
}
