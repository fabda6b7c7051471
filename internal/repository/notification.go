package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// Sentinel errors for notification operations.
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository provides database access for notifications and
// their tracked interaction events.
type NotificationRepository struct {
	repo *Repository
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{repo: repo}
}

const notificationColumns = `
	id, website_id, type, status, title, message, image_url, url,
	max_displays, target_pages, display_count, click_count,
	created_at, updated_at
`

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, website_id, type, status, title, message, image_url, url,
			max_displays, target_pages, display_count, click_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, NOW(), NOW())
	`

	_, err := r.repo.pool.Exec(ctx, query,
		n.ID,
		n.WebsiteID,
		string(n.Type),
		string(n.Status),
		n.Title,
		n.Message,
		nullableString(n.ImageURL),
		nullableString(n.URL),
		n.MaxDisplays,
		pq.Array(n.TargetPages),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// GetByID looks up a notification by id.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	row := r.repo.pool.QueryRow(ctx, query, id)
	return scanNotification(row)
}

// ListActive returns active notifications for a website in newest-first
// order, capped at limit. Display-budget filtering happens in SQL so a
// notification whose max-shows rule is exhausted never reaches the widget.
func (r *NotificationRepository) ListActive(ctx context.Context, websiteID string, limit int) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE website_id = $1
		  AND status = 'active'
		  AND (max_displays = 0 OR display_count < max_displays)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, websiteID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// UpdateStatus moves a notification through its lifecycle.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status model.NotificationStatus) error {
	tag, err := r.repo.pool.Exec(ctx,
		`UPDATE notifications SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// RecordEvent applies one (notification, client, action) interaction
// idempotently. The insert and the counter increment run in a single
// transaction: a duplicate report inserts nothing and increments nothing.
// Returns true if this call was the first record for the triple.
func (r *NotificationRepository) RecordEvent(ctx context.Context, event *model.NotificationEvent) (bool, error) {
	tx, err := r.repo.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO notification_events (notification_id, client_id, action, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (notification_id, client_id, action) DO NOTHING
	`

	tag, err := tx.Exec(ctx, insertQuery,
		event.NotificationID,
		event.ClientID,
		string(event.Action),
		event.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Already recorded: duplicate delivery, no-op.
		return false, nil
	}

	var counterQuery string
	switch event.Action {
	case model.ActionDisplay:
		counterQuery = `UPDATE notifications SET display_count = display_count + 1, updated_at = NOW() WHERE id = $1`
	case model.ActionClick:
		counterQuery = `UPDATE notifications SET click_count = click_count + 1, updated_at = NOW() WHERE id = $1`
	default:
		return false, fmt.Errorf("unhandled track action %q", event.Action)
	}

	if _, err := tx.Exec(ctx, counterQuery, event.NotificationID); err != nil {
		return false, fmt.Errorf("increment counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return true, nil
}

// scanNotification scans one notification row.
func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var notifType, status string
	var imageURL, url *string
	var targetPages []string
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&n.ID,
		&n.WebsiteID,
		&notifType,
		&status,
		&n.Title,
		&n.Message,
		&imageURL,
		&url,
		&n.MaxDisplays,
		pq.Array(&targetPages),
		&n.DisplayCount,
		&n.ClickCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	n.Type = model.NotificationType(notifType)
	n.Status = model.NotificationStatus(status)
	if imageURL != nil {
		n.ImageURL = *imageURL
	}
	if url != nil {
		n.URL = *url
	}
	n.TargetPages = targetPages
	n.CreatedAt = createdAt
	n.UpdatedAt = updatedAt

	return &n, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
