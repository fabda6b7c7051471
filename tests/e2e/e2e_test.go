//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"

	"github.com/dheerajmandava/proovd-sub004/internal/auth"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

type eventBatchResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Errors   []struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	} `json:"errors,omitempty"`
}

type notificationListResponse struct {
	Notifications []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"notifications"`
}

type trackResponse struct {
	Recorded bool `json:"recorded"`
}

type statsSnapshot struct {
	WebsiteID   string `json:"websiteId"`
	ActiveUsers int    `json:"activeUsers"`
	TotalClicks int64  `json:"totalClicks"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("PROOVD_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	site := bootstrapVerifiedSite(t, dbURL)
	notificationID := seedNotification(t, dbURL, site.ID)

	clientID := fmt.Sprintf("e2e-client-%d", time.Now().UnixNano())

	// Ingest a batch through the widget endpoint.
	batch := map[string]any{
		"events": []map[string]any{
			{"client_id": clientID, "type": "pageview"},
			{"client_id": clientID, "type": "heartbeat"},
			{"client_id": clientID, "type": "click"},
		},
	}
	var ingested eventBatchResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/events", site.APIKey, batch, &ingested)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 from event ingest, got %d", status)
	}
	if ingested.Accepted != 3 || ingested.Rejected != 0 {
		t.Fatalf("expected 3 accepted, got accepted=%d rejected=%d", ingested.Accepted, ingested.Rejected)
	}

	// The live stream should reflect the client we just ingested.
	assertLiveSnapshot(t, baseURL, site.APIKey)

	// The active notification must be visible to the widget.
	var list notificationListResponse
	status = doJSON(t, http.MethodGet, baseURL+"/api/v1/notifications", site.APIKey, nil, &list)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from notification list, got %d", status)
	}
	if len(list.Notifications) == 0 {
		t.Fatalf("expected seeded notification in widget list")
	}

	// Track is recorded once per client and action.
	trackURL := baseURL + "/api/v1/notifications/" + notificationID + "/track"
	payload := map[string]any{"client_id": clientID, "action": "display"}

	var first trackResponse
	if status := doJSON(t, http.MethodPost, trackURL, site.APIKey, payload, &first); status != http.StatusOK {
		t.Fatalf("expected 200 from track, got %d", status)
	}
	if !first.Recorded {
		t.Fatalf("first track should be recorded")
	}

	var second trackResponse
	if status := doJSON(t, http.MethodPost, trackURL, site.APIKey, payload, &second); status != http.StatusOK {
		t.Fatalf("expected 200 from duplicate track, got %d", status)
	}
	if second.Recorded {
		t.Fatalf("duplicate track must not be recorded again")
	}

	assertWidgetLoader(t, baseURL, site)
}

func TestE2EUnknownKeyRefused(t *testing.T) {
	baseURL := envOrDefault("PROOVD_BASE_URL", "http://localhost:8080")

	fakeKey := "pv_live_" + strings.Repeat("a", 32)
	batch := map[string]any{
		"events": []map[string]any{{"client_id": "visitor-x", "type": "pageview"}},
	}

	var out map[string]any
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/events", fakeKey, batch, &out)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", status)
	}
}

func TestE2ERateLimiting(t *testing.T) {
	baseURL := envOrDefault("PROOVD_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	site := bootstrapVerifiedSite(t, dbURL)

	client := &http.Client{Timeout: 10 * time.Second}
	var limited *http.Response

	// The default burst is well under 200 requests.
	for i := 0; i < 200; i++ {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/notifications", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("X-Api-Key", site.APIKey)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			break
		}
		resp.Body.Close()
	}

	if limited == nil {
		t.Skip("rate limiting appears disabled in this environment")
	}
	defer limited.Body.Close()

	if limited.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit header on 429 response")
	}
	if limited.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429 response")
	}

	var errResp map[string]any
	if err := json.NewDecoder(limited.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}
	if errResp["error"] == nil {
		t.Error("429 response missing 'error' field")
	}
}

func TestE2ENoKeyEchoedInResponses(t *testing.T) {
	baseURL := envOrDefault("PROOVD_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	site := bootstrapVerifiedSite(t, dbURL)
	client := &http.Client{Timeout: 10 * time.Second}

	fakeKey := "pv_live_" + strings.Repeat("x", 32)
	for _, key := range []string{fakeKey, site.APIKey} {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/notifications", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("X-Api-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if strings.Contains(string(body), key) {
			t.Errorf("response echoed back the X-Api-Key value")
		}
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// bootstrapVerifiedSite inserts a verified website directly into the
// database so tests can exercise the widget surface without the
// verification round trip.
func bootstrapVerifiedSite(t *testing.T, dbURL string) *model.Website {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	key, err := auth.GenerateSiteKey(auth.EnvTest)
	if err != nil {
		t.Fatalf("generate site key: %v", err)
	}
	token, err := auth.GenerateVerificationToken()
	if err != nil {
		t.Fatalf("generate verification token: %v", err)
	}

	now := time.Now().UTC()
	site := &model.Website{
		ID:                 ulid.Make().String(),
		OwnerID:            "e2e",
		Domain:             fmt.Sprintf("e2e-%d.example.com", now.UnixNano()),
		APIKey:             key,
		VerificationStatus: model.VerificationVerified,
		VerificationToken:  token,
		Settings:           model.DefaultSettings(),
		Enabled:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := repository.NewWebsiteRepository(repo).Create(ctx, site); err != nil {
		t.Fatalf("create website: %v", err)
	}
	return site
}

func seedNotification(t *testing.T, dbURL, websiteID string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	now := time.Now().UTC()
	n := &model.Notification{
		ID:        ulid.Make().String(),
		WebsiteID: websiteID,
		Type:      model.NotificationAnnouncement,
		Status:    model.NotificationActive,
		Title:     "e2e smoke",
		Message:   "someone just ran the smoke test",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repository.NewNotificationRepository(repo).Create(ctx, n); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n.ID
}

func assertLiveSnapshot(t *testing.T, baseURL, apiKey string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/v1/live?key=" + apiKey
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial live stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var snapshot statsSnapshot
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snapshot.ActiveUsers < 1 {
		t.Errorf("expected at least one active user in snapshot, got %d", snapshot.ActiveUsers)
	}
}

func assertWidgetLoader(t *testing.T, baseURL string, site *model.Website) {
	t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/w/" + site.ID + ".js")
	if err != nil {
		t.Fatalf("fetch widget loader: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from widget loader, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(site.APIKey)) {
		t.Error("widget loader script missing the site key")
	}
}

func doJSON(t *testing.T, method, url, apiKey string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}
