package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every externally tunable constant of the catalogue core.
// Thresholds and weights are environment variables so tests and operators
// can sweep them without rebuilding.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"WO_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"WO_DB_MAX_CONNS" default:"8"`

	// Path to an optional YAML file overriding the source-priority and
	// premium-venue tables. Empty means built-in defaults.
	CatalogPath string `envconfig:"WO_CATALOG_PATH" default:""`

	// Dedup engine.
	DedupThreshold            float64 `envconfig:"WO_DEDUP_THRESHOLD" default:"0.78"`
	DedupQuickRejectThreshold float64 `envconfig:"WO_DEDUP_QUICK_REJECT_THRESHOLD" default:"0.3"`
	DedupDateWindowDays       int     `envconfig:"WO_DEDUP_DATE_WINDOW_DAYS" default:"14"`
	DedupTitleWeight          float64 `envconfig:"WO_DEDUP_TITLE_WEIGHT" default:"0.50"`
	DedupDateWeight           float64 `envconfig:"WO_DEDUP_DATE_WEIGHT" default:"0.30"`
	DedupVenueWeight          float64 `envconfig:"WO_DEDUP_VENUE_WEIGHT" default:"0.20"`
	NormalizeCacheCeiling     int     `envconfig:"WO_NORMALIZE_CACHE_CEILING" default:"10000"`

	// Feature extraction.
	CategoryWeight    float64 `envconfig:"WO_FEATURE_CATEGORY_WEIGHT" default:"10"`
	SubcategoryWeight float64 `envconfig:"WO_FEATURE_SUBCATEGORY_WEIGHT" default:"5"`
	PriceWeight       float64 `envconfig:"WO_FEATURE_PRICE_WEIGHT" default:"1"`
	VenueTierWeight   float64 `envconfig:"WO_FEATURE_VENUE_WEIGHT" default:"1"`
	FreeFlagWeight    float64 `envconfig:"WO_FEATURE_FREE_WEIGHT" default:"0.5"`
	PopularityWeight  float64 `envconfig:"WO_FEATURE_POPULARITY_WEIGHT" default:"1"`
	PriceLogCeiling   float64 `envconfig:"WO_PRICE_LOG_CEILING" default:"500"`

	// User profiles.
	DecayHalfLifeDays       float64 `envconfig:"WO_PROFILE_HALF_LIFE_DAYS" default:"30"`
	ExplicitBlendWeight     float64 `envconfig:"WO_PROFILE_EXPLICIT_BLEND" default:"0.30"`
	ColdStartConfidence     float64 `envconfig:"WO_PROFILE_COLD_START_CONFIDENCE" default:"0.3"`
	ConfidenceSaturation    int     `envconfig:"WO_PROFILE_CONFIDENCE_SATURATION" default:"20"`
	MaxInteractions         int     `envconfig:"WO_PROFILE_MAX_INTERACTIONS" default:"200"`
	InteractionLookbackDays int     `envconfig:"WO_PROFILE_LOOKBACK_DAYS" default:"182"`
	FavouriteWeight         float64 `envconfig:"WO_PROFILE_FAVOURITE_WEIGHT" default:"1.0"`
	ClickthroughWeight      float64 `envconfig:"WO_PROFILE_CLICKTHROUGH_WEIGHT" default:"0.6"`
	ViewWeight              float64 `envconfig:"WO_PROFILE_VIEW_WEIGHT" default:"0.2"`
	UnfavouriteWeight       float64 `envconfig:"WO_PROFILE_UNFAVOURITE_WEIGHT" default:"-0.5"`

	// Ranking surfaces.
	RankSimilarityWeight   float64 `envconfig:"WO_RANK_SIMILARITY_WEIGHT" default:"0.60"`
	RankPopularityWeight   float64 `envconfig:"WO_RANK_POPULARITY_WEIGHT" default:"0.20"`
	RankNoveltyWeight      float64 `envconfig:"WO_RANK_NOVELTY_WEIGHT" default:"0.10"`
	RankUrgencyWeight      float64 `envconfig:"WO_RANK_URGENCY_WEIGHT" default:"0.10"`
	SimilarCandidateCap    int     `envconfig:"WO_RANK_SIMILAR_CANDIDATE_CAP" default:"50"`
	UrgencyHorizonDays     int     `envconfig:"WO_RANK_URGENCY_HORIZON_DAYS" default:"14"`
	TrendingVelocityDays   int     `envconfig:"WO_TRENDING_VELOCITY_DAYS" default:"7"`
	GemMaxFavourites       int64   `envconfig:"WO_GEMS_MAX_FAVOURITES" default:"5"`
	GemMaxViews            int64   `envconfig:"WO_GEMS_MAX_VIEWS" default:"100"`
	GemMinPopularityScore  float64 `envconfig:"WO_GEMS_MIN_POPULARITY_SCORE" default:"0.6"`
	NoveltyFavouriteWindow int     `envconfig:"WO_RANK_NOVELTY_FAVOURITES" default:"5"`

	// Background worker.
	DaemonInterval time.Duration `envconfig:"WO_DAEMON_INTERVAL" default:"30m"`

	// HTTP API.
	HTTPHost                   string `envconfig:"WO_HTTP_HOST" default:"0.0.0.0"`
	HTTPPort                   int    `envconfig:"WO_HTTP_PORT" default:"8090"`
	HTTPReadTimeoutSeconds     int    `envconfig:"WO_HTTP_READ_TIMEOUT_SECONDS" default:"15"`
	HTTPWriteTimeoutSeconds    int    `envconfig:"WO_HTTP_WRITE_TIMEOUT_SECONDS" default:"30"`
	HTTPShutdownTimeoutSeconds int    `envconfig:"WO_HTTP_SHUTDOWN_TIMEOUT_SECONDS" default:"10"`
	CORSAllowedOrigins         string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// Bcrypt hash of the shared scraper token guarding POST /api/v1/ingest.
	// Empty leaves the endpoint open, for local development only.
	IngestTokenHash string `envconfig:"WO_INGEST_TOKEN_HASH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("WO_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("WO_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("WO_DB_MIN_CONNS (%d) cannot exceed WO_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("WO_DEDUP_THRESHOLD must be in (0,1]")
	}
	if c.DedupQuickRejectThreshold < 0 || c.DedupQuickRejectThreshold > 1 {
		return fmt.Errorf("WO_DEDUP_QUICK_REJECT_THRESHOLD must be in [0,1]")
	}
	if c.DedupDateWindowDays < 1 {
		return fmt.Errorf("WO_DEDUP_DATE_WINDOW_DAYS must be >= 1")
	}
	for name, w := range map[string]float64{
		"WO_DEDUP_TITLE_WEIGHT": c.DedupTitleWeight,
		"WO_DEDUP_DATE_WEIGHT":  c.DedupDateWeight,
		"WO_DEDUP_VENUE_WEIGHT": c.DedupVenueWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1]", name)
		}
	}
	if c.CategoryWeight <= 0 || c.SubcategoryWeight <= 0 {
		return fmt.Errorf("feature category/subcategory weights must be > 0")
	}
	if c.PriceLogCeiling <= 1 {
		return fmt.Errorf("WO_PRICE_LOG_CEILING must be > 1")
	}
	if c.ExplicitBlendWeight < 0 || c.ExplicitBlendWeight > 1 {
		return fmt.Errorf("WO_PROFILE_EXPLICIT_BLEND must be in [0,1]")
	}
	if c.ColdStartConfidence < 0 || c.ColdStartConfidence > 1 {
		return fmt.Errorf("WO_PROFILE_COLD_START_CONFIDENCE must be in [0,1]")
	}
	if c.ConfidenceSaturation < 1 {
		return fmt.Errorf("WO_PROFILE_CONFIDENCE_SATURATION must be >= 1")
	}
	if c.DecayHalfLifeDays <= 0 {
		return fmt.Errorf("WO_PROFILE_HALF_LIFE_DAYS must be > 0")
	}
	if c.SimilarCandidateCap < 1 {
		return fmt.Errorf("WO_RANK_SIMILAR_CANDIDATE_CAP must be >= 1")
	}
	if c.DaemonInterval < time.Minute {
		return fmt.Errorf("WO_DAEMON_INTERVAL must be >= 1m")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("WO_HTTP_PORT must be a valid port")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
