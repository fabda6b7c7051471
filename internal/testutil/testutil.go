package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dheerajmandava/proovd-sub004/internal/auth"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 707070

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetWebsitesSchema drops and recreates the websites schema for tests.
// Notifications cascade off websites, so their tables go down first.
func ResetWebsitesSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := applyMigration(ctx, pool, "000002_notifications.down.sql"); err != nil {
		return err
	}
	if err := applyMigration(ctx, pool, "000001_websites.down.sql"); err != nil {
		return err
	}
	if err := applyMigration(ctx, pool, "000001_websites.up.sql"); err != nil {
		return err
	}
	return applyMigration(ctx, pool, "000002_notifications.up.sql")
}

// ResetNotificationsSchema drops and recreates the notifications schema for tests.
func ResetNotificationsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := applyMigration(ctx, pool, "000002_notifications.down.sql"); err != nil {
		return err
	}
	return applyMigration(ctx, pool, "000002_notifications.up.sql")
}

// ResetStatsSchema drops and recreates the stats and event journal schema for tests.
func ResetStatsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := applyMigration(ctx, pool, "000003_stats.down.sql"); err != nil {
		return err
	}
	return applyMigration(ctx, pool, "000003_stats.up.sql")
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	sql, err := os.ReadFile(filepath.Join(root, "migrations", name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestWebsite creates a verified, enabled website with sensible defaults.
func NewTestWebsite(t testing.TB, domain string) *model.Website {
	t.Helper()
	now := time.Now().UTC()
	key, err := auth.GenerateSiteKey(auth.EnvTest)
	if err != nil {
		t.Fatalf("generate site key: %v", err)
	}
	return &model.Website{
		ID:                 UniqueID("site"),
		OwnerID:            "test-user",
		Domain:             domain,
		APIKey:             key,
		VerificationStatus: model.VerificationVerified,
		VerificationToken:  "proovd-verify-test",
		Settings:           model.DefaultSettings(),
		Enabled:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewTestPendingWebsite creates a website awaiting domain verification.
func NewTestPendingWebsite(t testing.TB, domain string) *model.Website {
	t.Helper()
	site := NewTestWebsite(t, domain)
	site.VerificationStatus = model.VerificationPending
	return site
}

// NewTestNotification creates an active notification with sensible defaults.
func NewTestNotification(t testing.TB, websiteID string) *model.Notification {
	t.Helper()
	now := time.Now().UTC()
	return &model.Notification{
		ID:        UniqueID("notif"),
		WebsiteID: websiteID,
		Type:      model.NotificationAnnouncement,
		Status:    model.NotificationActive,
		Title:     "New signup",
		Message:   "Someone just joined from Berlin",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestEvent creates an activity event with sensible defaults.
func NewTestEvent(t testing.TB, websiteID, clientID string, eventType model.EventType) *model.ActivityEvent {
	t.Helper()
	return &model.ActivityEvent{
		ID:         UniqueID("evt"),
		WebsiteID:  websiteID,
		ClientID:   clientID,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
