package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

// Sentinel errors for website operations.
var (
	ErrWebsiteNotFound      = errors.New("website not found")
	ErrInvalidTransition    = errors.New("invalid verification status transition")
	ErrDuplicateAPIKey      = errors.New("api key already exists")
	ErrWebsiteHasReferences = errors.New("website is referenced by notifications")
)

// WebsiteRepository provides database access for websites.
type WebsiteRepository struct {
	repo *Repository
}

// NewWebsiteRepository creates a new WebsiteRepository.
func NewWebsiteRepository(repo *Repository) *WebsiteRepository {
	return &WebsiteRepository{repo: repo}
}

const websiteColumns = `
	id, owner_id, domain, api_key, verification_status, verification_token,
	settings, enabled, created_at, updated_at
`

// Create inserts a new website. New sites start PENDING with default settings
// applied by the caller.
func (r *WebsiteRepository) Create(ctx context.Context, site *model.Website) error {
	settingsJSON, err := json.Marshal(site.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO websites (
			id, owner_id, domain, api_key, verification_status,
			verification_token, settings, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	_, err = r.repo.pool.Exec(ctx, query,
		site.ID,
		site.OwnerID,
		site.Domain,
		site.APIKey,
		string(site.VerificationStatus),
		site.VerificationToken,
		settingsJSON,
		site.Enabled,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAPIKey
		}
		return fmt.Errorf("insert website: %w", err)
	}

	return nil
}

// GetByAPIKey looks up a website by its widget API key.
func (r *WebsiteRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE api_key = $1`

	row := r.repo.pool.QueryRow(ctx, query, apiKey)
	return scanWebsite(row)
}

// GetByID looks up a website by id.
func (r *WebsiteRepository) GetByID(ctx context.Context, id string) (*model.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1`

	row := r.repo.pool.QueryRow(ctx, query, id)
	return scanWebsite(row)
}

// ListByVerificationStatus returns websites in the given verification state.
// Used by the verification retry sweep.
func (r *WebsiteRepository) ListByVerificationStatus(ctx context.Context, status model.VerificationStatus, limit int) ([]*model.Website, error) {
	query := `
		SELECT ` + websiteColumns + `
		FROM websites
		WHERE verification_status = $1 AND enabled = TRUE
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query websites: %w", err)
	}
	defer rows.Close()

	var sites []*model.Website
	for rows.Next() {
		site, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// UpdateVerificationStatus moves a website through the verification state
// machine. The transition is validated in SQL against the current row state
// so concurrent checks cannot produce an illegal move.
func (r *WebsiteRepository) UpdateVerificationStatus(ctx context.Context, id string, from, to model.VerificationStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	query := `
		UPDATE websites
		SET verification_status = $1, updated_at = NOW()
		WHERE id = $2 AND verification_status = $3
	`

	tag, err := r.repo.pool.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the website is gone or another checker already moved it.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: website %s is %s, not %s", ErrInvalidTransition, id, current.VerificationStatus, from)
	}

	return nil
}

// UpdateSettings replaces the widget settings for a website.
func (r *WebsiteRepository) UpdateSettings(ctx context.Context, id string, settings model.WebsiteSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tag, err := r.repo.pool.Exec(ctx,
		`UPDATE websites SET settings = $1, updated_at = NOW() WHERE id = $2`,
		settingsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWebsiteNotFound
	}

	return nil
}

// SetEnabled soft-enables or soft-disables a website. Websites are never
// hard-deleted while notifications reference them.
func (r *WebsiteRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.repo.pool.Exec(ctx,
		`UPDATE websites SET enabled = $1, updated_at = NOW() WHERE id = $2`,
		enabled, id,
	)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWebsiteNotFound
	}

	return nil
}

// scanWebsite scans one website row.
func scanWebsite(row pgx.Row) (*model.Website, error) {
	var site model.Website
	var status string
	var settingsJSON []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&site.ID,
		&site.OwnerID,
		&site.Domain,
		&site.APIKey,
		&status,
		&site.VerificationToken,
		&settingsJSON,
		&site.Enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}

	site.VerificationStatus = model.VerificationStatus(status)
	site.CreatedAt = createdAt
	site.UpdatedAt = updatedAt

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &site.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	return &site, nil
}
