// Package payloadschema validates scraped event-listing payloads at the
// ingestion boundary. Everything downstream assumes well-formed records, so
// all field validation lives here.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed event_listing.schema.json
var eventListingSchemaJSON string

// EventListing is a validated v1 scraper payload.
type EventListing struct {
	PayloadVersion  string   `json:"payload_version"`
	Source          string   `json:"source"`
	SourceEventID   string   `json:"source_event_id"`
	Title           string   `json:"title"`
	Description     *string  `json:"description,omitempty"`
	DescriptionHTML *string  `json:"description_html,omitempty"`
	Category        *string  `json:"category,omitempty"`
	Subcategories   []string `json:"subcategories,omitempty"`
	StartAt         string   `json:"start_at"`
	EndAt           *string  `json:"end_at,omitempty"`
	VenueName       string   `json:"venue_name"`
	VenueAddress    *string  `json:"venue_address,omitempty"`
	VenueLocality   *string  `json:"venue_locality,omitempty"`
	PriceMin        *float64 `json:"price_min,omitempty"`
	PriceMax        *float64 `json:"price_max,omitempty"`
	PriceDetails    *string  `json:"price_details,omitempty"`
	IsFree          *bool    `json:"is_free,omitempty"`
	BookingURL      *string  `json:"booking_url,omitempty"`
	ImageURL        *string  `json:"image_url,omitempty"`
	VideoURL        *string  `json:"video_url,omitempty"`
	Accessibility   []string `json:"accessibility,omitempty"`
	AgeRestriction  *string  `json:"age_restriction,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateEventListingPayload checks a raw payload against the v1 schema and
// the semantic rules the schema cannot express, returning the decoded
// listing on success.
func ValidateEventListingPayload(payload json.RawMessage) (*EventListing, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var listing EventListing
	if err := json.Unmarshal(normalized, &listing); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&listing); err != nil {
		return nil, err
	}

	return &listing, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("event_listing.schema.json", strings.NewReader(eventListingSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("event_listing.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(listing *EventListing) error {
	if listing == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(listing.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(listing.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(listing.SourceEventID) == "" {
		return fmt.Errorf("source_event_id must not be empty")
	}
	if strings.TrimSpace(listing.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(listing.VenueName) == "" {
		return fmt.Errorf("venue_name must not be empty")
	}

	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(listing.StartAt))
	if err != nil {
		return fmt.Errorf("start_at must be RFC3339: %w", err)
	}
	if listing.EndAt != nil {
		endAt, err := time.Parse(time.RFC3339, strings.TrimSpace(*listing.EndAt))
		if err != nil {
			return fmt.Errorf("end_at must be RFC3339: %w", err)
		}
		if endAt.Before(startAt) {
			return fmt.Errorf("end_at must not precede start_at")
		}
	}

	if listing.PriceMin != nil && listing.PriceMax != nil && *listing.PriceMin > *listing.PriceMax {
		return fmt.Errorf("price_min must not exceed price_max")
	}
	if listing.IsFree != nil && *listing.IsFree && listing.PriceMin != nil && *listing.PriceMin > 0 {
		return fmt.Errorf("is_free conflicts with a positive price_min")
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"booking_url", listing.BookingURL},
		{"image_url", listing.ImageURL},
		{"video_url", listing.VideoURL},
	} {
		if field.value != nil {
			if err := validateURI(field.name, *field.value); err != nil {
				return err
			}
		}
	}

	for i, sub := range listing.Subcategories {
		if strings.TrimSpace(sub) == "" {
			return fmt.Errorf("subcategories[%d] must not be empty", i)
		}
	}
	for i, tag := range listing.Accessibility {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("accessibility[%d] must not be empty", i)
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
