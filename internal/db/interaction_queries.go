package db

import (
	"context"
	"fmt"
	"time"
)

func (p *Pool) InsertInteraction(ctx context.Context, interaction *UserInteraction) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Create(interaction).Error; err != nil {
		return fmt.Errorf("insert interaction user=%s event=%s: %w", interaction.UserID, interaction.EventID, err)
	}
	return nil
}

// RecentInteractionsByUser returns the user's newest interactions since the
// cutoff, newest first, capped at limit.
func (p *Pool) RecentInteractionsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]UserInteraction, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	var interactions []UserInteraction
	err := p.gdb.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since.UTC()).
		Order("occurred_at DESC, interaction_id DESC").
		Limit(limit).
		Find(&interactions).Error
	if err != nil {
		return nil, fmt.Errorf("recent interactions for user %s: %w", userID, err)
	}
	return interactions, nil
}

// RecentFavouriteEventIDs returns the ids of the user's newest favourited
// events, used by the novelty penalty.
func (p *Pool) RecentFavouriteEventIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := p.Query(ctx, `
SELECT event_id
FROM (
	SELECT DISTINCT ON (event_id) event_id, occurred_at
	FROM catalogue.user_interactions
	WHERE user_id = $1 AND type = $2
	ORDER BY event_id, occurred_at DESC
) favourites
ORDER BY occurred_at DESC
LIMIT $3
`, userID, InteractionFavourite, limit)
	if err != nil {
		return nil, fmt.Errorf("recent favourites for user %s: %w", userID, err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var eventID string
		if err := rows.Scan(&eventID); err != nil {
			return nil, fmt.Errorf("scan favourite row: %w", err)
		}
		ids = append(ids, eventID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favourite rows: %w", err)
	}
	return ids, nil
}

// EngagementSince returns the per-event count of interactions recorded after
// the cutoff, feeding the trending velocity factor.
func (p *Pool) EngagementSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	rows, err := p.Query(ctx, `
SELECT event_id, COUNT(*)
FROM catalogue.user_interactions
WHERE occurred_at >= $1 AND type <> $2
GROUP BY event_id
`, since.UTC(), InteractionUnfavourite)
	if err != nil {
		return nil, fmt.Errorf("engagement since %s: %w", since, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventID string
		var count int64
		if err := rows.Scan(&eventID, &count); err != nil {
			return nil, fmt.Errorf("scan engagement row: %w", err)
		}
		counts[eventID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagement rows: %w", err)
	}
	return counts, nil
}

func (p *Pool) GetUser(ctx context.Context, userID string) (*User, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var user User
	err := p.gdb.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

func (p *Pool) UpsertUser(ctx context.Context, user *User) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.gdb.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("upsert user %s: %w", user.UserID, err)
	}
	return nil
}
