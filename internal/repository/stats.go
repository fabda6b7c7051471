package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// ErrStatsNotFound indicates no aggregate row exists for the website yet.
var ErrStatsNotFound = errors.New("website stats not found")

// ErrRecomputeLocked indicates another recompute already holds the per-site
// lock. Overlapping cron invocations skip the site instead of racing.
var ErrRecomputeLocked = errors.New("recompute already in progress for website")

// advisoryLockClass namespaces our advisory lock keys so they cannot
// collide with other lock users on a shared database.
const advisoryLockClass = 0x70726f6f // "proo"

// StatsRepository persists the per-website aggregate row.
type StatsRepository struct {
	repo *Repository
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(repo *Repository) *StatsRepository {
	return &StatsRepository{repo: repo}
}

// Upsert writes the full aggregate row for a website. The aggregation
// engine is the single writer, so last-write-wins semantics are safe here.
func (r *StatsRepository) Upsert(ctx context.Context, stats *model.WebsiteStats) error {
	countryJSON, err := json.Marshal(stats.UsersByCountry)
	if err != nil {
		return fmt.Errorf("marshal country breakdown: %w", err)
	}
	cityJSON, err := json.Marshal(stats.UsersByCity)
	if err != nil {
		return fmt.Errorf("marshal city breakdown: %w", err)
	}

	query := `
		INSERT INTO website_stats (
			website_id, active_users, total_clicks,
			avg_scroll_percentage, scroll_samples,
			avg_time_on_page_ms, time_samples,
			users_by_country, users_by_city, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (website_id) DO UPDATE SET
			active_users = EXCLUDED.active_users,
			total_clicks = EXCLUDED.total_clicks,
			avg_scroll_percentage = EXCLUDED.avg_scroll_percentage,
			scroll_samples = EXCLUDED.scroll_samples,
			avg_time_on_page_ms = EXCLUDED.avg_time_on_page_ms,
			time_samples = EXCLUDED.time_samples,
			users_by_country = EXCLUDED.users_by_country,
			users_by_city = EXCLUDED.users_by_city,
			updated_at = NOW()
	`

	_, err = r.repo.pool.Exec(ctx, query,
		stats.WebsiteID,
		stats.ActiveUsers,
		stats.TotalClicks,
		stats.AvgScrollPercentage,
		stats.ScrollSamples,
		stats.AvgTimeOnPageMs,
		stats.TimeSamples,
		countryJSON,
		cityJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert website stats: %w", err)
	}

	return nil
}

// GetByWebsiteID loads the aggregate row for a website.
func (r *StatsRepository) GetByWebsiteID(ctx context.Context, websiteID string) (*model.WebsiteStats, error) {
	query := `
		SELECT website_id, active_users, total_clicks,
		       avg_scroll_percentage, scroll_samples,
		       avg_time_on_page_ms, time_samples,
		       users_by_country, users_by_city, updated_at
		FROM website_stats
		WHERE website_id = $1
	`

	var stats model.WebsiteStats
	var countryJSON, cityJSON []byte
	var updatedAt time.Time

	err := r.repo.pool.QueryRow(ctx, query, websiteID).Scan(
		&stats.WebsiteID,
		&stats.ActiveUsers,
		&stats.TotalClicks,
		&stats.AvgScrollPercentage,
		&stats.ScrollSamples,
		&stats.AvgTimeOnPageMs,
		&stats.TimeSamples,
		&countryJSON,
		&cityJSON,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("query website stats: %w", err)
	}

	if len(countryJSON) > 0 {
		_ = json.Unmarshal(countryJSON, &stats.UsersByCountry)
	}
	if len(cityJSON) > 0 {
		_ = json.Unmarshal(cityJSON, &stats.UsersByCity)
	}
	stats.UpdatedAt = updatedAt

	return &stats, nil
}

// ListWebsiteIDs returns the ids of all websites that have recorded
// activity, for the cron recompute to walk.
func (r *StatsRepository) ListWebsiteIDs(ctx context.Context) ([]string, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT DISTINCT website_id FROM activity_events`)
	if err != nil {
		return nil, fmt.Errorf("query website ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan website id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Recompute rebuilds the aggregate row for one website from the raw event
// journal, guarded by a per-site advisory lock so only one recompute runs
// per site at a time. Counters and means are rebuilt from scratch; the
// active-user count is derived from distinct clients seen inside the
// liveness window ending at now.
func (r *StatsRepository) Recompute(ctx context.Context, websiteID string, livenessWindow time.Duration, now time.Time) (*model.WebsiteStats, error) {
	conn, err := r.repo.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	lockKey := advisoryLockKey(websiteID)

	var locked bool
	if err := conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock($1, $2)`, advisoryLockClass, lockKey,
	).Scan(&locked); err != nil {
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		return nil, ErrRecomputeLocked
	}
	defer func() {
		_, _ = conn.Exec(ctx,
			`SELECT pg_advisory_unlock($1, $2)`, advisoryLockClass, lockKey)
	}()

	stats := &model.WebsiteStats{
		WebsiteID:      websiteID,
		UsersByCountry: make(map[string]int64),
		UsersByCity:    make(map[string]int64),
	}

	// Active users and click totals in one pass.
	windowStart := now.Add(-livenessWindow)
	countsQuery := `
		SELECT
			COUNT(DISTINCT client_id) FILTER (WHERE occurred_at >= $2),
			COUNT(*) FILTER (WHERE type = 'click')
		FROM activity_events
		WHERE website_id = $1
	`
	if err := conn.QueryRow(ctx, countsQuery, websiteID, windowStart).
		Scan(&stats.ActiveUsers, &stats.TotalClicks); err != nil {
		return nil, fmt.Errorf("recompute counts: %w", err)
	}

	// Running means from all samples of each metric type. Zero-valued
	// heartbeats are keepalives, not time measurements, and are excluded
	// from the mean exactly as the live path excludes them.
	meansQuery := `
		SELECT
			COALESCE(AVG(value) FILTER (WHERE type = 'scroll'), 0),
			COUNT(*) FILTER (WHERE type = 'scroll'),
			COALESCE(AVG(value) FILTER (WHERE type = 'heartbeat' AND value > 0), 0),
			COUNT(*) FILTER (WHERE type = 'heartbeat' AND value > 0)
		FROM activity_events
		WHERE website_id = $1
	`
	if err := conn.QueryRow(ctx, meansQuery, websiteID).Scan(
		&stats.AvgScrollPercentage,
		&stats.ScrollSamples,
		&stats.AvgTimeOnPageMs,
		&stats.TimeSamples,
	); err != nil {
		return nil, fmt.Errorf("recompute means: %w", err)
	}

	// Geo breakdowns count each client once per country/city.
	geoQuery := `
		SELECT country_code, city_name, COUNT(DISTINCT client_id)
		FROM activity_events
		WHERE website_id = $1 AND country_code <> ''
		GROUP BY country_code, city_name
	`
	rows, err := conn.Query(ctx, geoQuery, websiteID)
	if err != nil {
		return nil, fmt.Errorf("recompute geo: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var country, city string
		var count int64
		if err := rows.Scan(&country, &city, &count); err != nil {
			return nil, fmt.Errorf("scan geo row: %w", err)
		}
		stats.UsersByCountry[country] += count
		if city != "" {
			stats.UsersByCity[city] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geo rows: %w", err)
	}

	if err := r.Upsert(ctx, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// advisoryLockKey derives a stable 32-bit key for a website id.
func advisoryLockKey(websiteID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(websiteID))
	return int32(h.Sum32())
}
