// Package ingest is the boundary between scrapers and the catalogue. It
// validates raw listing payloads, assigns canonical identity, and pushes
// all missing-field handling to this one layer so the core engines can
// assume well-formed events.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/langdetect"
	"horse.fit/whatson/internal/metrics"
	"horse.fit/whatson/internal/taxonomy"
	payloadschema "horse.fit/whatson/schema"
)

// Store is the persistence surface the boundary needs. *db.Pool satisfies it.
type Store interface {
	FindEventByExternalID(ctx context.Context, source, externalID string) (*db.Event, error)
	InsertEvent(ctx context.Context, event *db.Event) error
	SaveEvent(ctx context.Context, event *db.Event) error
}

// Result summarises one ingest batch.
type Result struct {
	Received int
	Created  int
	Updated  int
	Rejected int
}

// Service ingests scraped listing payloads into canonical events.
type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "ingest").Logger(),
	}
}

// IngestBatch processes payloads independently: a bad payload is rejected,
// logged, and counted, never fatal to the batch.
func (s *Service) IngestBatch(ctx context.Context, payloads []json.RawMessage) Result {
	result := Result{Received: len(payloads)}
	for i, payload := range payloads {
		_, created, err := s.IngestPayload(ctx, payload)
		if err != nil {
			result.Rejected++
			s.log.Warn().Err(err).Int("payload_index", i).Msg("payload rejected")
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result
}

// IngestPayload validates one payload and either creates a canonical event
// or refreshes the provenance of the event already holding the payload's
// (source, external id) pair. Returns whether a new event was created.
func (s *Service) IngestPayload(ctx context.Context, payload json.RawMessage) (*db.Event, bool, error) {
	listing, err := payloadschema.ValidateEventListingPayload(payload)
	if err != nil {
		metrics.IngestPayloadsRejected.Inc()
		return nil, false, fmt.Errorf("validate payload: %w", err)
	}

	source := strings.ToLower(strings.TrimSpace(listing.Source))
	externalID := strings.TrimSpace(listing.SourceEventID)

	existing, err := s.store.FindEventByExternalID(ctx, source, externalID)
	if err != nil && !db.IsNoRows(err) {
		return nil, false, fmt.Errorf("look up existing event: %w", err)
	}
	if existing != nil {
		if err := s.refreshExisting(ctx, existing, listing, source); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	event := buildEvent(listing, source, externalID)
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, false, fmt.Errorf("insert event: %w", err)
	}
	metrics.IngestEventsCreated.Inc()
	s.log.Debug().
		Str("event_id", event.EventID).
		Str("source", source).
		Str("title", event.Title).
		Msg("event created")
	return event, true, nil
}

// refreshExisting updates provenance on a re-scraped listing instead of
// creating a duplicate: booking URL, gap-filling media and description, and
// the update timestamp.
func (s *Service) refreshExisting(ctx context.Context, event *db.Event, listing *payloadschema.EventListing, source string) error {
	if listing.BookingURL != nil && strings.TrimSpace(*listing.BookingURL) != "" {
		if event.BookingURLs == nil {
			event.BookingURLs = make(map[string]string)
		}
		event.BookingURLs[source] = strings.TrimSpace(*listing.BookingURL)
	}
	if event.Description == "" {
		event.Description = resolveDescription(listing)
	}
	if event.ImageURL == nil && listing.ImageURL != nil {
		event.ImageURL = listing.ImageURL
	}
	event.LastUpdatedAt = globaltime.UTC()

	if err := s.store.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("refresh event %s: %w", event.EventID, err)
	}
	s.log.Debug().
		Str("event_id", event.EventID).
		Str("source", source).
		Msg("event provenance refreshed")
	return nil
}

func buildEvent(listing *payloadschema.EventListing, source, externalID string) *db.Event {
	now := globaltime.UTC()

	// Validation already proved these parse.
	startAt, _ := time.Parse(time.RFC3339, strings.TrimSpace(listing.StartAt))
	var endAt *time.Time
	if listing.EndAt != nil {
		parsed, _ := time.Parse(time.RFC3339, strings.TrimSpace(*listing.EndAt))
		utc := parsed.UTC()
		endAt = &utc
	}

	category := taxonomy.Fallback
	if listing.Category != nil {
		category = taxonomy.CanonicalCategory(*listing.Category)
	}

	description := resolveDescription(listing)
	language := langdetect.DetectISO6391(description)
	if language == "" {
		language = "en"
	}

	isFree := listing.IsFree != nil && *listing.IsFree
	priceMin := listing.PriceMin
	if isFree {
		priceMin = nil
	}

	event := &db.Event{
		EventID:       uuid.NewString(),
		Title:         strings.TrimSpace(listing.Title),
		Description:   description,
		Language:      language,
		Category:      category,
		Subcategories: canonicalSubcategories(category, listing.Subcategories),
		StartAt:       startAt.UTC(),
		EndAt:         endAt,
		VenueName:     strings.TrimSpace(listing.VenueName),
		PriceMin:      priceMin,
		PriceMax:      listing.PriceMax,
		PriceDetails:  listing.PriceDetails,
		IsFree:        isFree,
		ImageURL:      listing.ImageURL,
		VideoURL:      listing.VideoURL,
		Accessibility: trimmedList(listing.Accessibility),

		AgeRestriction:  listing.AgeRestriction,
		DurationMinutes: listing.DurationMinutes,

		Sources:       []string{source},
		PrimarySource: source,
		ExternalIDs:   map[string]string{source: externalID},

		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	if listing.VenueAddress != nil {
		event.VenueAddress = strings.TrimSpace(*listing.VenueAddress)
	}
	if listing.VenueLocality != nil {
		event.VenueLocality = strings.TrimSpace(*listing.VenueLocality)
	}
	if listing.BookingURL != nil && strings.TrimSpace(*listing.BookingURL) != "" {
		event.BookingURLs = map[string]string{source: strings.TrimSpace(*listing.BookingURL)}
	}
	return event
}

func resolveDescription(listing *payloadschema.EventListing) string {
	if listing.Description != nil {
		if text := CleanText(*listing.Description); text != "" {
			return text
		}
	}
	if listing.DescriptionHTML != nil {
		bookingURL := ""
		if listing.BookingURL != nil {
			bookingURL = *listing.BookingURL
		}
		return ExtractDescription(*listing.DescriptionHTML, bookingURL, listing.Title)
	}
	return ""
}

// canonicalSubcategories keeps only labels that are valid members of the
// event's category, in canonical casing, deduplicated.
func canonicalSubcategories(category string, raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, label := range raw {
		canonical := taxonomy.CanonicalSubcategory(category, label)
		if canonical == "" {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

func trimmedList(raw []string) []string {
	var out []string
	for _, value := range raw {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
