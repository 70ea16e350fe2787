package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/taxonomy"
)

type eventItem struct {
	EventID       string   `json:"event_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Language      string   `json:"language"`
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories,omitempty"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	VenueName     string `json:"venue_name"`
	VenueAddress  string `json:"venue_address,omitempty"`
	VenueLocality string `json:"venue_locality,omitempty"`

	PriceMin     *float64 `json:"price_min,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	PriceDetails *string  `json:"price_details,omitempty"`
	IsFree       bool     `json:"is_free"`

	BookingURLs   map[string]string `json:"booking_urls,omitempty"`
	ImageURL      *string           `json:"image_url,omitempty"`
	VideoURL      *string           `json:"video_url,omitempty"`
	Accessibility []string          `json:"accessibility,omitempty"`

	AgeRestriction  *string `json:"age_restriction,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`

	Sources       []string `json:"sources"`
	PrimarySource string   `json:"primary_source"`

	ViewCount            int64   `json:"view_count"`
	FavouriteCount       int64   `json:"favourite_count"`
	ClickthroughCount    int64   `json:"clickthrough_count"`
	PopularityPercentile float64 `json:"popularity_percentile"`

	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

func toEventItem(event *db.Event) eventItem {
	return eventItem{
		EventID:              event.EventID,
		Title:                event.Title,
		Description:          event.Description,
		Language:             event.Language,
		Category:             event.Category,
		Subcategories:        event.Subcategories,
		StartAt:              event.StartAt,
		EndAt:                event.EndAt,
		VenueName:            event.VenueName,
		VenueAddress:         event.VenueAddress,
		VenueLocality:        event.VenueLocality,
		PriceMin:             event.PriceMin,
		PriceMax:             event.PriceMax,
		PriceDetails:         event.PriceDetails,
		IsFree:               event.IsFree,
		BookingURLs:          event.BookingURLs,
		ImageURL:             event.ImageURL,
		VideoURL:             event.VideoURL,
		Accessibility:        event.Accessibility,
		AgeRestriction:       event.AgeRestriction,
		DurationMinutes:      event.DurationMinutes,
		Sources:              event.Sources,
		PrimarySource:        event.PrimarySource,
		ViewCount:            event.ViewCount,
		FavouriteCount:       event.FavouriteCount,
		ClickthroughCount:    event.ClickthroughCount,
		PopularityPercentile: event.PopularityPercentile,
		FirstSeenAt:          event.FirstSeenAt,
		LastUpdatedAt:        event.LastUpdatedAt,
	}
}

func (s *Server) handleListEvents(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	category := strings.TrimSpace(strings.ToLower(c.QueryParam("category")))
	if category != "" && !taxonomy.IsCategory(category) {
		return failValidation(c, map[string]string{"category": "unknown category"})
	}

	from, err := parseTimeFilter(c.QueryParam("from"), false)
	if err != nil {
		return failValidation(c, map[string]string{"from": "must be RFC3339 or YYYY-MM-DD"})
	}
	to, err := parseTimeFilter(c.QueryParam("to"), true)
	if err != nil {
		return failValidation(c, map[string]string{"to": "must be RFC3339 or YYYY-MM-DD"})
	}
	if from != nil && to != nil && from.After(*to) {
		return failValidation(c, map[string]string{"time_range": "from must be <= to"})
	}

	events, err := s.pool.ListEvents(c.Request().Context(), db.ListEventsOptions{
		Category: category,
		Source:   strings.TrimSpace(strings.ToLower(c.QueryParam("source"))),
		From:     from,
		To:       to,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("list events failed")
		return internalError(c, "Failed to load events")
	}

	items := make([]eventItem, 0, len(events))
	for i := range events {
		items = append(items, toEventItem(&events[i]))
	}
	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":      page,
			"page_size": pageSize,
		},
	})
}

func (s *Server) handleGetEvent(c echo.Context) error {
	eventID := strings.TrimSpace(c.Param("event_id"))
	if eventID == "" {
		return failValidation(c, map[string]string{"event_id": "is required"})
	}

	event, err := s.pool.GetEvent(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Event not found")
		}
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("get event failed")
		return internalError(c, "Failed to load event")
	}
	return success(c, toEventItem(event))
}
