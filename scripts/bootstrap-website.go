// Command bootstrap-website registers a website directly against the
// database and prints its widget key and verification token. Useful for
// local development and for seeding the first site in a new environment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/auth"
	"github.com/dheerajmandava/proovd-sub004/internal/cache"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
	"github.com/dheerajmandava/proovd-sub004/internal/service"
	"github.com/dheerajmandava/proovd-sub004/internal/verification"
)

type output struct {
	WebsiteID          string `json:"website_id"`
	Domain             string `json:"domain"`
	APIKey             string `json:"api_key"`
	VerificationToken  string `json:"verification_token"`
	VerificationStatus string `json:"verification_status"`
	WellKnownURL       string `json:"well_known_url"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		domain      = flag.String("domain", "", "Domain the widget will run on (required)")
		ownerID     = flag.String("owner", "system", "Owner ID for the website")
		keyEnv      = flag.String("env", auth.EnvLive, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *domain == "" {
		fmt.Fprintln(os.Stderr, "-domain is required")
		os.Exit(1)
	}
	if *keyEnv != auth.EnvLive && *keyEnv != auth.EnvTest {
		fmt.Fprintln(os.Stderr, "invalid -env; use live or test")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	websites := service.NewWebsiteService(repository.NewWebsiteRepository(repo), noopCache{}, logger)

	site, err := websites.Register(ctx, service.RegisterInput{
		OwnerID: *ownerID,
		Domain:  *domain,
		KeyEnv:  *keyEnv,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "register website:", err)
		os.Exit(1)
	}

	out := output{
		WebsiteID:          site.ID,
		Domain:             site.Domain,
		APIKey:             site.APIKey,
		VerificationToken:  site.VerificationToken,
		VerificationStatus: string(site.VerificationStatus),
		WellKnownURL:       "https://" + site.Domain + verification.WellKnownPath,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("website_id:", out.WebsiteID)
		fmt.Println("api_key:", out.APIKey)
		fmt.Println("verification_token:", out.VerificationToken)
		fmt.Println("publish the token at:", out.WellKnownURL)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// noopCache satisfies the service cache surface without a Redis
// connection. Registration never reads the cache, so misses are fine.
type noopCache struct{}

func (noopCache) GetWebsite(context.Context, string) (*model.Website, error) {
	return nil, cache.ErrCacheMiss
}

func (noopCache) SetWebsite(context.Context, *model.Website, time.Duration) error { return nil }
func (noopCache) DeleteWebsite(context.Context, string) error                     { return nil }
func (noopCache) IsNegativelyCached(context.Context, string) (bool, error)        { return false, nil }
func (noopCache) SetNegativeCache(context.Context, string) error                  { return nil }
