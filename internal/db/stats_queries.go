package db

import (
	"context"
	"fmt"
)

// CatalogueStats summarises the state of the events table for the stats
// command and the health endpoint.
type CatalogueStats struct {
	ActiveEvents   int64
	ArchivedEvents int64
	Sources        map[string]int64
	Categories     map[string]int64
	Users          int64
	Interactions   int64
}

func (p *Pool) CatalogueStats(ctx context.Context) (*CatalogueStats, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	stats := &CatalogueStats{
		Sources:    make(map[string]int64),
		Categories: make(map[string]int64),
	}

	row := p.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE archived_at IS NULL),
	COUNT(*) FILTER (WHERE archived_at IS NOT NULL)
FROM catalogue.events
`)
	if err := row.Scan(&stats.ActiveEvents, &stats.ArchivedEvents); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	rows, err := p.Query(ctx, `
SELECT primary_source, COUNT(*)
FROM catalogue.events
WHERE archived_at IS NULL
GROUP BY primary_source
`)
	if err != nil {
		return nil, fmt.Errorf("count events by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		stats.Sources[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source counts: %w", err)
	}

	catRows, err := p.Query(ctx, `
SELECT category, COUNT(*)
FROM catalogue.events
WHERE archived_at IS NULL
GROUP BY category
`)
	if err != nil {
		return nil, fmt.Errorf("count events by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var category string
		var count int64
		if err := catRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.Categories[category] = count
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}

	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM catalogue.users`).Scan(&stats.Users); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM catalogue.user_interactions`).Scan(&stats.Interactions); err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}

	return stats, nil
}
