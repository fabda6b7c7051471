// Package verification proves domain ownership for registered websites.
//
// A site owner places their verification token at a well-known path on
// the claimed domain. The verifier fetches it over HTTPS and moves the
// site PENDING to VERIFIED on a token match, PENDING to FAILED otherwise.
// Failed sites can be re-queued, which is the only path back to PENDING.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

const (
	// WellKnownPath is where site owners publish their token.
	WellKnownPath = "/.well-known/proovd-verification.txt"

	// DefaultTimeout bounds one token fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultSweepBatch is how many pending sites one sweep processes.
	DefaultSweepBatch = 50

	// maxTokenBodySize bounds how much of the response body is read.
	maxTokenBodySize = 4096
)

// WebsiteStore is the persistence surface the verifier needs.
type WebsiteStore interface {
	ListByVerificationStatus(ctx context.Context, status model.VerificationStatus, limit int) ([]*model.Website, error)
	UpdateVerificationStatus(ctx context.Context, id string, from, to model.VerificationStatus) error
}

// CacheInvalidator drops stale cache entries after a state change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, apiKey string)
}

// Verifier checks domain ownership tokens for pending websites.
type Verifier struct {
	store       WebsiteStore
	invalidator CacheInvalidator
	client      *http.Client
	logger      *slog.Logger
	sweepBatch  int

	// tokenURL builds the fetch URL for a domain. Tests override it to
	// point at a local server.
	tokenURL func(domain string) string
}

// New creates a Verifier.
func New(store WebsiteStore, invalidator CacheInvalidator, logger *slog.Logger) *Verifier {
	return &Verifier{
		store:       store,
		invalidator: invalidator,
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// A redirected token could come from a domain the owner
				// does not control.
				return http.ErrUseLastResponse
			},
		},
		logger:     logger.With("component", "verification"),
		sweepBatch: DefaultSweepBatch,
		tokenURL: func(domain string) string {
			return "https://" + domain + WellKnownPath
		},
	}
}

// SetTimeout overrides the token fetch timeout.
func (v *Verifier) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		v.client.Timeout = timeout
	}
}

// SetSweepBatch overrides how many sites one sweep processes.
func (v *Verifier) SetSweepBatch(batch int) {
	if batch > 0 {
		v.sweepBatch = batch
	}
}

// SetTokenURL overrides the token URL builder.
func (v *Verifier) SetTokenURL(build func(domain string) string) {
	if build != nil {
		v.tokenURL = build
	}
}

// VerifyWebsite checks one pending site's token and applies the outcome.
// Returns the resulting status.
func (v *Verifier) VerifyWebsite(ctx context.Context, site *model.Website) (model.VerificationStatus, error) {
	if site.VerificationStatus != model.VerificationPending {
		return site.VerificationStatus, fmt.Errorf("website %s is %s, not pending", site.ID, site.VerificationStatus)
	}

	matched, fetchErr := v.fetchAndMatch(ctx, site)

	outcome := model.VerificationFailed
	if matched {
		outcome = model.VerificationVerified
	}

	err := v.store.UpdateVerificationStatus(ctx, site.ID, model.VerificationPending, outcome)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			// Lost a race with a concurrent sweep; the other run decided.
			return site.VerificationStatus, nil
		}
		return site.VerificationStatus, fmt.Errorf("update verification status: %w", err)
	}

	if v.invalidator != nil {
		v.invalidator.Invalidate(ctx, site.APIKey)
	}

	if matched {
		v.logger.Info("domain verified", "website_id", site.ID, "domain", site.Domain)
	} else {
		v.logger.Info("domain verification failed",
			"website_id", site.ID,
			"domain", site.Domain,
			"error", fetchErr,
		)
	}

	return outcome, nil
}

// fetchAndMatch retrieves the well-known token and compares it.
func (v *Verifier) fetchAndMatch(ctx context.Context, site *model.Website) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.tokenURL(site.Domain), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "proovd-verifier/1.0")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodySize))
	if err != nil {
		return false, fmt.Errorf("read token body: %w", err)
	}

	if strings.TrimSpace(string(body)) != site.VerificationToken {
		return false, errors.New("token mismatch")
	}
	return true, nil
}

// Sweep verifies every pending site, up to the batch limit. Returns how
// many sites were verified and how many failed.
func (v *Verifier) Sweep(ctx context.Context) (verified, failed int, err error) {
	pending, err := v.store.ListByVerificationStatus(ctx, model.VerificationPending, v.sweepBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending websites: %w", err)
	}

	for _, site := range pending {
		outcome, err := v.VerifyWebsite(ctx, site)
		if err != nil {
			v.logger.Error("verify website", "website_id", site.ID, "error", err)
			continue
		}
		switch outcome {
		case model.VerificationVerified:
			verified++
		case model.VerificationFailed:
			failed++
		}
	}

	return verified, failed, nil
}

// RetryFailed re-queues failed sites for another verification attempt.
// Returns how many sites moved back to pending.
func (v *Verifier) RetryFailed(ctx context.Context) (int, error) {
	sites, err := v.store.ListByVerificationStatus(ctx, model.VerificationFailed, v.sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list failed websites: %w", err)
	}

	requeued := 0
	for _, site := range sites {
		err := v.store.UpdateVerificationStatus(ctx, site.ID, model.VerificationFailed, model.VerificationPending)
		if err != nil {
			if errors.Is(err, repository.ErrInvalidTransition) {
				continue
			}
			return requeued, fmt.Errorf("requeue website %s: %w", site.ID, err)
		}
		requeued++
	}

	return requeued, nil
}
