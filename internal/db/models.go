package db

import (
	"time"
)

// Event maps catalogue.events: one canonical event, aggregated across every
// source that listed it. Mutated only by merges and engagement counters;
// archived (never deleted) once its date range passes.
type Event struct {
	EventID     string `gorm:"column:event_id;type:uuid;primaryKey"`
	Title       string `gorm:"column:title;type:text;not null"`
	Description string `gorm:"column:description;type:text;not null;default:''"`
	Language    string `gorm:"column:language;type:text;not null;default:en"`

	Category      string   `gorm:"column:category;type:text;not null"`
	Subcategories []string `gorm:"column:subcategories;type:jsonb;serializer:json"`

	StartAt time.Time  `gorm:"column:start_at;type:timestamptz;not null"`
	EndAt   *time.Time `gorm:"column:end_at;type:timestamptz"`

	VenueName     string `gorm:"column:venue_name;type:text;not null"`
	VenueAddress  string `gorm:"column:venue_address;type:text;not null;default:''"`
	VenueLocality string `gorm:"column:venue_locality;type:text;not null;default:''"`

	PriceMin     *float64 `gorm:"column:price_min;type:double precision"`
	PriceMax     *float64 `gorm:"column:price_max;type:double precision"`
	PriceDetails *string  `gorm:"column:price_details;type:text"`
	IsFree       bool     `gorm:"column:is_free;type:boolean;not null;default:false"`

	BookingURLs   map[string]string `gorm:"column:booking_urls;type:jsonb;serializer:json"`
	ImageURL      *string           `gorm:"column:image_url;type:text"`
	VideoURL      *string           `gorm:"column:video_url;type:text"`
	Accessibility []string          `gorm:"column:accessibility;type:jsonb;serializer:json"`

	AgeRestriction  *string `gorm:"column:age_restriction;type:text"`
	DurationMinutes *int    `gorm:"column:duration_minutes;type:integer"`

	Sources       []string          `gorm:"column:sources;type:jsonb;serializer:json"`
	PrimarySource string            `gorm:"column:primary_source;type:text;not null"`
	ExternalIDs   map[string]string `gorm:"column:external_ids;type:jsonb;serializer:json"`

	ViewCount            int64   `gorm:"column:view_count;type:bigint;not null;default:0"`
	FavouriteCount       int64   `gorm:"column:favourite_count;type:bigint;not null;default:0"`
	ClickthroughCount    int64   `gorm:"column:clickthrough_count;type:bigint;not null;default:0"`
	PopularityScore      float64 `gorm:"column:popularity_score;type:double precision;not null;default:0"`
	PopularityPercentile float64 `gorm:"column:popularity_percentile;type:double precision;not null;default:0"`

	FirstSeenAt   time.Time  `gorm:"column:first_seen_at;type:timestamptz;not null"`
	LastUpdatedAt time.Time  `gorm:"column:last_updated_at;type:timestamptz;not null"`
	ArchivedAt    *time.Time `gorm:"column:archived_at;type:timestamptz"`
}

func (Event) TableName() string { return "catalogue.events" }

// Preferences is a user's explicit onboarding choices, stored as one jsonb
// document. Validated at the boundary so the profile builder can trust it.
type Preferences struct {
	Categories    map[string]float64 `json:"categories,omitempty"`
	Subcategories []string           `json:"subcategories,omitempty"`
	PriceMin      *float64           `json:"price_min,omitempty"`
	PriceMax      *float64           `json:"price_max,omitempty"`
	Popularity    float64            `json:"popularity,omitempty"`
}

// User maps catalogue.users.
type User struct {
	UserID      string      `gorm:"column:user_id;type:uuid;primaryKey"`
	Preferences Preferences `gorm:"column:preferences;type:jsonb;serializer:json"`
	CreatedAt   time.Time   `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (User) TableName() string { return "catalogue.users" }

// Interaction types recorded against events.
const (
	InteractionView         = "view"
	InteractionFavourite    = "favourite"
	InteractionUnfavourite  = "unfavourite"
	InteractionClickthrough = "clickthrough"
)

// UserInteraction maps catalogue.user_interactions. Append-only: rows are
// inserted and read, never mutated.
type UserInteraction struct {
	InteractionID int64     `gorm:"column:interaction_id;primaryKey;autoIncrement"`
	UserID        string    `gorm:"column:user_id;type:uuid;not null;index"`
	EventID       string    `gorm:"column:event_id;type:uuid;not null;index"`
	Type          string    `gorm:"column:type;type:text;not null"`
	Source        string    `gorm:"column:source;type:text;not null;default:''"`
	OccurredAt    time.Time `gorm:"column:occurred_at;type:timestamptz;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (UserInteraction) TableName() string { return "catalogue.user_interactions" }

// DedupRun maps catalogue.dedup_runs: one ledger row per batch dedup pass.
type DedupRun struct {
	RunID         int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	StartedAt     time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt    *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status        string     `gorm:"column:status;type:text;not null;default:running"`
	EventsScanned int        `gorm:"column:events_scanned;type:integer;not null;default:0"`
	EventsSkipped int        `gorm:"column:events_skipped;type:integer;not null;default:0"`
	PairsCompared int        `gorm:"column:pairs_compared;type:integer;not null;default:0"`
	MatchesFound  int        `gorm:"column:matches_found;type:integer;not null;default:0"`
	MergesApplied int        `gorm:"column:merges_applied;type:integer;not null;default:0"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text"`
}

func (DedupRun) TableName() string { return "catalogue.dedup_runs" }

// MergeRecord maps catalogue.merge_records: the audit trail of applied
// merges. The absorbed event row stays in catalogue.events, archived.
type MergeRecord struct {
	MergeID         int64     `gorm:"column:merge_id;primaryKey;autoIncrement"`
	RunID           int64     `gorm:"column:run_id;type:bigint;not null;index"`
	PrimaryEventID  string    `gorm:"column:primary_event_id;type:uuid;not null"`
	AbsorbedEventID string    `gorm:"column:absorbed_event_id;type:uuid;not null"`
	Confidence      float64   `gorm:"column:confidence;type:double precision;not null"`
	Reason          string    `gorm:"column:reason;type:text;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MergeRecord) TableName() string { return "catalogue.merge_records" }

func autoMigrateModels() []any {
	return []any{
		&Event{},
		&User{},
		&UserInteraction{},
		&DedupRun{},
		&MergeRecord{},
	}
}
