// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dheerajmandava/proovd-sub004/internal/auth"
	"github.com/dheerajmandava/proovd-sub004/internal/cache"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

// Service errors.
var (
	// ErrUnauthorized covers unknown, unverified and disabled websites.
	// Callers present all three identically so probing a key reveals
	// nothing about why it was refused.
	ErrUnauthorized = errors.New("website not authorized")

	ErrInvalidDomain   = errors.New("invalid domain")
	ErrWebsiteNotFound = errors.New("website not found")
)

// Domain validation: bare hostname, no scheme, no path.
var domainRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

const maxKeyGenRetries = 3

// WebsiteStore is the persistence surface the service needs.
type WebsiteStore interface {
	Create(ctx context.Context, site *model.Website) error
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Website, error)
	GetByID(ctx context.Context, id string) (*model.Website, error)
}

// WebsiteCache is the lookup cache surface the service needs.
type WebsiteCache interface {
	GetWebsite(ctx context.Context, apiKey string) (*model.Website, error)
	SetWebsite(ctx context.Context, site *model.Website, ttl time.Duration) error
	DeleteWebsite(ctx context.Context, apiKey string) error
	IsNegativelyCached(ctx context.Context, apiKey string) (bool, error)
	SetNegativeCache(ctx context.Context, apiKey string) error
}

// WebsiteService resolves widget API keys to websites and registers new sites.
type WebsiteService struct {
	store    WebsiteStore
	cache    WebsiteCache
	logger   *slog.Logger
	cacheTTL time.Duration
}

// NewWebsiteService creates a new WebsiteService.
func NewWebsiteService(store WebsiteStore, c WebsiteCache, logger *slog.Logger) *WebsiteService {
	return &WebsiteService{
		store:    store,
		cache:    c,
		logger:   logger.With("component", "service.website"),
		cacheTTL: cache.DefaultWebsiteTTL,
	}
}

// SetCacheTTL overrides the website cache TTL.
func (s *WebsiteService) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// Resolve maps a widget API key to a servable website.
// This is the hot path: every ingest batch and widget fetch goes through
// it, so lookups are cache-first with negative caching for unknown keys.
func (s *WebsiteService) Resolve(ctx context.Context, apiKey string) (*model.Website, error) {
	if !auth.ValidateKeyFormat(apiKey) {
		return nil, fmt.Errorf("%w: malformed key", ErrUnauthorized)
	}

	// Step 1: Try cache
	cached, err := s.cache.GetWebsite(ctx, apiKey)
	if err == nil {
		return s.checkServable(cached)
	}

	// Step 2: Check negative cache
	if errors.Is(err, cache.ErrCacheMiss) {
		if isNegative, _ := s.cache.IsNegativelyCached(ctx, apiKey); isNegative {
			return nil, fmt.Errorf("%w: unknown key", ErrUnauthorized)
		}
	} else {
		// Redis error: fall through to DB
		s.logger.Warn("website cache lookup failed", "error", err)
	}

	// Step 3: DB lookup
	site, err := s.store.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repository.ErrWebsiteNotFound) {
			_ = s.cache.SetNegativeCache(ctx, apiKey)
			return nil, fmt.Errorf("%w: unknown key", ErrUnauthorized)
		}
		return nil, fmt.Errorf("resolve website: %w", err)
	}

	// Step 4: Backfill cache
	if err := s.cache.SetWebsite(ctx, site, s.cacheTTL); err != nil {
		s.logger.Warn("website cache backfill failed", "error", err)
	}

	return s.checkServable(site)
}

// checkServable refuses sites that must not receive widget traffic.
func (s *WebsiteService) checkServable(site *model.Website) (*model.Website, error) {
	if !site.Enabled {
		return nil, fmt.Errorf("%w: website disabled", ErrUnauthorized)
	}
	if !site.IsVerified() {
		return nil, fmt.Errorf("%w: domain not verified", ErrUnauthorized)
	}
	return site, nil
}

// RegisterInput defines input for registering a website.
type RegisterInput struct {
	OwnerID string
	Domain  string
	KeyEnv  string // auth.EnvLive or auth.EnvTest
}

// Register creates a new website in PENDING state with a fresh widget key
// and verification token. The site serves no traffic until its domain is
// verified.
func (s *WebsiteService) Register(ctx context.Context, input RegisterInput) (*model.Website, error) {
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	if !domainRegex.MatchString(domain) {
		return nil, ErrInvalidDomain
	}

	keyEnv := input.KeyEnv
	if keyEnv == "" {
		keyEnv = auth.EnvLive
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = "system"
	}

	token, err := auth.GenerateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := time.Now().UTC()
	site := &model.Website{
		ID:                 ulid.Make().String(),
		OwnerID:            ownerID,
		Domain:             domain,
		VerificationStatus: model.VerificationPending,
		VerificationToken:  token,
		Settings:           model.DefaultSettings(),
		Enabled:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Key collisions are astronomically unlikely but cheap to retry.
	for attempt := 0; attempt < maxKeyGenRetries; attempt++ {
		key, err := auth.GenerateSiteKey(keyEnv)
		if err != nil {
			return nil, fmt.Errorf("generate site key: %w", err)
		}
		site.APIKey = key

		err = s.store.Create(ctx, site)
		if err == nil {
			s.logger.Info("website registered",
				"website_id", site.ID,
				"domain", site.Domain,
			)
			return site, nil
		}
		if !errors.Is(err, repository.ErrDuplicateAPIKey) {
			return nil, fmt.Errorf("create website: %w", err)
		}
	}

	return nil, errors.New("failed to generate unique site key after retries")
}

// GetByID looks a website up directly, bypassing the key cache.
func (s *WebsiteService) GetByID(ctx context.Context, id string) (*model.Website, error) {
	site, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWebsiteNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}
	return site, nil
}

// Invalidate drops a website's cache entry after a state change.
func (s *WebsiteService) Invalidate(ctx context.Context, apiKey string) {
	if err := s.cache.DeleteWebsite(ctx, apiKey); err != nil {
		s.logger.Warn("website cache invalidation failed", "error", err)
	}
}
