package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// ActivityEventRepository provides database access for the raw event journal.
type ActivityEventRepository struct {
	repo *Repository
}

// NewActivityEventRepository creates a new ActivityEventRepository.
func NewActivityEventRepository(repo *Repository) *ActivityEventRepository {
	return &ActivityEventRepository{repo: repo}
}

// BulkInsert inserts multiple activity events with idempotency via
// ON CONFLICT DO NOTHING. Event ids are ULIDs assigned at ingest, so a
// redelivered journal batch inserts nothing the second time.
func (r *ActivityEventRepository) BulkInsert(ctx context.Context, events []*model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO activity_events (
			id, website_id, client_id, type, value,
			country_code, city_name, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.WebsiteID,
			event.ClientID,
			string(event.Type),
			event.Value,
			event.CountryCode,
			event.CityName,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// DeleteOlderThan trims journal rows past the retention horizon. Returns
// the number of rows removed.
func (r *ActivityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.repo.pool.Exec(ctx,
		`DELETE FROM activity_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByWebsite returns how many journal rows exist for a website.
func (r *ActivityEventRepository) CountByWebsite(ctx context.Context, websiteID string) (int64, error) {
	var count int64
	err := r.repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE website_id = $1`, websiteID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
