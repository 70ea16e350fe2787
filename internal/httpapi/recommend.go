package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/ranking"
)

type rankedItem struct {
	Score float64   `json:"score"`
	Event eventItem `json:"event"`
}

// upcomingCandidates loads the active events a ranking request scores over.
func (s *Server) upcomingCandidates(ctx context.Context, category string) ([]db.Event, error) {
	now := globaltime.UTC()
	return s.pool.ListEvents(ctx, db.ListEventsOptions{
		Category: category,
		From:     &now,
		Limit:    candidatePoolCap,
	})
}

// rankedResponse resolves scored ids back to event payloads, keeping rank
// order and truncating to limit.
func rankedResponse(scored []ranking.Scored, candidates []db.Event, limit int) []rankedItem {
	byID := make(map[string]*db.Event, len(candidates))
	for i := range candidates {
		byID[candidates[i].EventID] = &candidates[i]
	}

	items := make([]rankedItem, 0, limit)
	for _, entry := range scored {
		event, ok := byID[entry.EventID]
		if !ok {
			continue
		}
		items = append(items, rankedItem{Score: entry.Score, Event: toEventItem(event)})
		if len(items) == limit {
			break
		}
	}
	return items
}

func (s *Server) handleFeed(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return failValidation(c, map[string]string{"user_id": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultFeedSize, 1, maxFeedSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()

	user, err := s.pool.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, db.ErrNoRows) {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("load user failed")
		return internalError(c, "Failed to load user")
	}

	userProfile, err := s.profiles.Compute(ctx, userID, user)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("compute profile failed")
		return internalError(c, "Failed to compute profile")
	}

	candidates, err := s.upcomingCandidates(ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("load feed candidates failed")
		return internalError(c, "Failed to load events")
	}

	favourites, err := s.recentFavourites(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("load recent favourites failed")
		return internalError(c, "Failed to load favourites")
	}

	scored, err := s.ranker.ForYou(userProfile, candidates, favourites, globaltime.UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("rank feed failed")
		return internalError(c, "Failed to rank events")
	}

	return success(c, map[string]any{
		"items": rankedResponse(scored, candidates, limit),
		"profile": map[string]any{
			"confidence":             userProfile.Confidence,
			"interaction_count":      userProfile.InteractionCount,
			"dominant_categories":    userProfile.DominantCategories,
			"dominant_subcategories": userProfile.DominantSubcategories,
		},
	})
}

func (s *Server) recentFavourites(ctx context.Context, userID string) ([]db.Event, error) {
	ids, err := s.pool.RecentFavouriteEventIDs(ctx, userID, s.cfg.NoveltyFavouriteWindow)
	if err != nil {
		return nil, fmt.Errorf("recent favourite ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.pool.GetEventsByIDs(ctx, ids)
}

func (s *Server) handleTrending(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultFeedSize, 1, maxFeedSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()
	candidates, err := s.upcomingCandidates(ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("load trending candidates failed")
		return internalError(c, "Failed to load events")
	}

	since := globaltime.UTC().Add(-time.Duration(s.cfg.TrendingVelocityDays) * 24 * time.Hour)
	engagement, err := s.pool.EngagementSince(ctx, since)
	if err != nil {
		s.logger.Error().Err(err).Msg("load recent engagement failed")
		return internalError(c, "Failed to load engagement")
	}

	scored := s.ranker.Trending(candidates, engagement, globaltime.UTC())
	return success(c, map[string]any{
		"items": rankedResponse(scored, candidates, limit),
	})
}

func (s *Server) handleGems(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultFeedSize, 1, maxFeedSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()
	candidates, err := s.upcomingCandidates(ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("load gems candidates failed")
		return internalError(c, "Failed to load events")
	}

	scored := s.ranker.Gems(candidates)
	return success(c, map[string]any{
		"items": rankedResponse(scored, candidates, limit),
	})
}

func (s *Server) handleSimilar(c echo.Context) error {
	eventID := strings.TrimSpace(c.Param("event_id"))
	if eventID == "" {
		return failValidation(c, map[string]string{"event_id": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultFeedSize, 1, maxFeedSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	ctx := c.Request().Context()
	anchor, err := s.pool.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Event not found")
		}
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("get anchor event failed")
		return internalError(c, "Failed to load event")
	}

	candidates, err := s.upcomingCandidates(ctx, anchor.Category)
	if err != nil {
		s.logger.Error().Err(err).Msg("load similar candidates failed")
		return internalError(c, "Failed to load events")
	}

	scored, err := s.ranker.Similar(anchor, candidates)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("rank similar failed")
		return internalError(c, "Failed to rank events")
	}

	return success(c, map[string]any{
		"anchor": toEventItem(anchor),
		"items":  rankedResponse(scored, candidates, limit),
	})
}
