package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/whatson/internal/globaltime"
)

// ListEventsOptions filters catalogue reads.
type ListEventsOptions struct {
	Category        string
	Source          string
	From            *time.Time
	To              *time.Time
	IncludeArchived bool
	Limit           int
	Offset          int
}

func (p *Pool) InsertEvent(ctx context.Context, event *Event) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("insert event %s: %w", event.EventID, err)
	}
	return nil
}

func (p *Pool) SaveEvent(ctx context.Context, event *Event) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Save(event).Error; err != nil {
		return fmt.Errorf("save event %s: %w", event.EventID, err)
	}
	return nil
}

func (p *Pool) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var event Event
	err := p.gdb.WithContext(ctx).First(&event, "event_id = ?", eventID).Error
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &event, nil
}

func (p *Pool) GetEventsByIDs(ctx context.Context, eventIDs []string) ([]Event, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var events []Event
	if err := p.gdb.WithContext(ctx).Where("event_id IN ?", eventIDs).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("get events by ids: %w", err)
	}
	return events, nil
}

// FindEventByExternalID resolves the canonical event already holding the
// (source, external id) provenance pair, if any.
func (p *Pool) FindEventByExternalID(ctx context.Context, source, externalID string) (*Event, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var event Event
	err := p.gdb.WithContext(ctx).
		Where("external_ids ->> ? = ?", source, externalID).
		First(&event).Error
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("find event by external id %s/%s: %w", source, externalID, err)
	}
	return &event, nil
}

func (p *Pool) ListEvents(ctx context.Context, opts ListEventsOptions) ([]Event, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	query := p.gdb.WithContext(ctx).Model(&Event{})
	if !opts.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}
	if opts.Source != "" {
		query = query.Where("sources @> ?", fmt.Sprintf(`["%s"]`, opts.Source))
	}
	if opts.From != nil {
		query = query.Where("start_at >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		query = query.Where("start_at < ?", opts.To.UTC())
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var events []Event
	if err := query.Order("start_at ASC, event_id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListDedupCandidates loads every active event for a batch dedup pass,
// ordered by id so passes are deterministic.
func (p *Pool) ListDedupCandidates(ctx context.Context) ([]Event, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var events []Event
	err := p.gdb.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("event_id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list dedup candidates: %w", err)
	}
	return events, nil
}

// ApplyMerge persists one merge atomically: the merged fields replace the
// primary row, the absorbed row is archived, and an audit record is written.
func (p *Pool) ApplyMerge(ctx context.Context, merged *Event, absorbedID string, record *MergeRecord) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}

	now := globaltime.UTC()
	merged.LastUpdatedAt = now

	if err := tx.GORM(ctx).Save(merged).Error; err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("save merged event %s: %w", merged.EventID, err)
	}

	tag, err := tx.Exec(ctx, `
UPDATE catalogue.events
SET archived_at = $1, last_updated_at = $1
WHERE event_id = $2 AND archived_at IS NULL
`, now, absorbedID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("archive absorbed event %s: %w", absorbedID, err)
	}
	if tag.RowsAffected() != 1 {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("absorbed event %s was not active", absorbedID)
	}

	record.CreatedAt = now
	if err := tx.GORM(ctx).Create(record).Error; err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert merge record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit merge tx: %w", err)
	}
	return nil
}

// ArchivePastEvents archives events whose whole date range lies before the
// cutoff. Returns the number of rows archived.
func (p *Pool) ArchivePastEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	tag, err := p.Exec(ctx, `
UPDATE catalogue.events
SET archived_at = $1, last_updated_at = $1
WHERE archived_at IS NULL
  AND COALESCE(end_at, start_at) < $2
`, globaltime.UTC(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("archive past events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// IncrementEngagement bumps the counter matching an interaction type.
// Unfavourite decrements the favourite counter, floored at zero.
func (p *Pool) IncrementEngagement(ctx context.Context, eventID, interactionType string) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	var column, expr string
	switch interactionType {
	case InteractionView:
		column, expr = "view_count", "view_count + 1"
	case InteractionFavourite:
		column, expr = "favourite_count", "favourite_count + 1"
	case InteractionUnfavourite:
		column, expr = "favourite_count", "GREATEST(favourite_count - 1, 0)"
	case InteractionClickthrough:
		column, expr = "clickthrough_count", "clickthrough_count + 1"
	default:
		return fmt.Errorf("unknown interaction type %q", interactionType)
	}

	err := p.gdb.WithContext(ctx).Model(&Event{}).
		Where("event_id = ?", eventID).
		UpdateColumn(column, gorm.Expr(expr)).Error
	if err != nil {
		return fmt.Errorf("increment %s for event %s: %w", column, eventID, err)
	}
	return nil
}

// RefreshPopularity recomputes raw popularity scores and category-relative
// percentiles over active events. Favourites weigh heaviest, then
// clickthroughs, then views; the log compresses the top of the range.
func (p *Pool) RefreshPopularity(ctx context.Context) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	tag, err := p.Exec(ctx, `
WITH scored AS (
	SELECT
		event_id,
		LN(1 + view_count + 5 * clickthrough_count + 10 * favourite_count) AS score,
		PERCENT_RANK() OVER (
			PARTITION BY category
			ORDER BY view_count + 5 * clickthrough_count + 10 * favourite_count
		) AS pct
	FROM catalogue.events
	WHERE archived_at IS NULL
)
UPDATE catalogue.events e
SET popularity_score = s.score,
    popularity_percentile = s.pct,
    last_updated_at = $1
FROM scored s
WHERE e.event_id = s.event_id
`, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("refresh popularity: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pool) CreateDedupRun(ctx context.Context) (*DedupRun, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	run := &DedupRun{
		StartedAt: globaltime.UTC(),
		Status:    "running",
	}
	if err := p.gdb.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create dedup run: %w", err)
	}
	return run, nil
}

func (p *Pool) FinishDedupRun(ctx context.Context, run *DedupRun) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	now := globaltime.UTC()
	run.FinishedAt = &now
	if err := p.gdb.WithContext(ctx).Clauses(clause.Returning{}).Save(run).Error; err != nil {
		return fmt.Errorf("finish dedup run %d: %w", run.RunID, err)
	}
	return nil
}
