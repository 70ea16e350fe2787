package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/auth"
	"horse.fit/whatson/internal/config"
)

func TestParsePositiveInt(t *testing.T) {
	t.Parallel()

	got, err := parsePositiveInt("", 25, 1, 200)
	if err != nil || got != 25 {
		t.Fatalf("expected default for empty input, got %d err %v", got, err)
	}

	got, err = parsePositiveInt(" 50 ", 25, 1, 200)
	if err != nil || got != 50 {
		t.Fatalf("expected trimmed parse, got %d err %v", got, err)
	}

	if _, err = parsePositiveInt("abc", 25, 1, 200); err == nil {
		t.Fatalf("expected error for non-integer input")
	}
	if _, err = parsePositiveInt("0", 25, 1, 200); err == nil {
		t.Fatalf("expected error below minimum")
	}
	if _, err = parsePositiveInt("500", 25, 1, 200); err == nil {
		t.Fatalf("expected error above maximum")
	}
}

func TestParseTimeFilter(t *testing.T) {
	t.Parallel()

	got, err := parseTimeFilter("", false)
	if err != nil || got != nil {
		t.Fatalf("expected nil for empty input, got %v err %v", got, err)
	}

	got, err = parseTimeFilter("2026-09-12T19:30:00+10:00", false)
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if want := time.Date(2026, 9, 12, 9, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	start, err := parseTimeFilter("2026-09-12", false)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if start.Hour() != 0 {
		t.Fatalf("expected start of day, got %v", start)
	}

	end, err := parseTimeFilter("2026-09-12", true)
	if err != nil {
		t.Fatalf("parse date end: %v", err)
	}
	if !end.After(*start) || end.Day() != 12 {
		t.Fatalf("expected end of the same day, got %v", end)
	}

	if _, err = parseTimeFilter("12/09/2026", false); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestNewServerAppliesDefaults(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, &config.Config{}, nil, nil, nil, zerolog.Nop(), Options{})
	if srv.opts.Host != "0.0.0.0" {
		t.Fatalf("unexpected default host: %q", srv.opts.Host)
	}
	if srv.opts.Port != 8090 {
		t.Fatalf("unexpected default port: %d", srv.opts.Port)
	}
	if srv.opts.ReadTimeout != 10*time.Second || srv.opts.WriteTimeout != 30*time.Second {
		t.Fatalf("unexpected default timeouts: %s / %s", srv.opts.ReadTimeout, srv.opts.WriteTimeout)
	}
	if len(srv.opts.AllowedOrigins) != 1 || srv.opts.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected default origins: %v", srv.opts.AllowedOrigins)
	}
}

func TestRequireIngestToken(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("scraper-secret")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}

	srv := &Server{cfg: &config.Config{IngestTokenHash: hash}, logger: zerolog.Nop()}
	next := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	handler := srv.requireIngestToken(next)

	call := func(authorization string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader("[]"))
		if authorization != "" {
			req.Header.Set(echo.HeaderAuthorization, authorization)
		}
		rec := httptest.NewRecorder()
		if handlerErr := handler(e.NewContext(req, rec)); handlerErr != nil {
			t.Fatalf("middleware returned error: %v", handlerErr)
		}
		return rec
	}

	if rec := call("Bearer scraper-secret"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected valid token accepted, got %d", rec.Code)
	}
	if rec := call("Bearer wrong-secret"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong token rejected, got %d", rec.Code)
	}
	if rec := call(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected missing header rejected, got %d", rec.Code)
	}
}

func TestRequireIngestTokenOpenWhenUnconfigured(t *testing.T) {
	t.Parallel()

	srv := &Server{cfg: &config.Config{}, logger: zerolog.Nop()}
	handler := srv.requireIngestToken(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader("[]"))
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected open passthrough without a configured hash, got %d", rec.Code)
	}
}
