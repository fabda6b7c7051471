package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
)

func newWidgetRouter(store *fakeWebsiteStore) http.Handler {
	h := NewWidgetHandler(newWebsiteService(store), "https://api.proovd.io", testLogger())
	r := chi.NewRouter()
	r.Get("/w/{websiteID}.js", h.Serve)
	return r
}

func TestWidget_ServesScript(t *testing.T) {
	store := newFakeWebsiteStore()
	site := servableSite(t)
	store.add(site)

	router := newWidgetRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/w/"+site.ID+".js", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != widgetCacheControl {
		t.Errorf("Cache-Control = %q, want %q", cc, widgetCacheControl)
	}

	body := rec.Body.String()
	if !strings.Contains(body, site.APIKey) {
		t.Error("script does not embed the site key")
	}
	if !strings.Contains(body, "https://api.proovd.io") {
		t.Error("script does not embed the base URL")
	}
	if strings.Contains(body, "__API_KEY__") || strings.Contains(body, "__SETTINGS_JSON__") {
		t.Error("script still contains template placeholders")
	}
}

func TestWidget_RefusesUnservable(t *testing.T) {
	store := newFakeWebsiteStore()

	pending := servableSite(t)
	pending.VerificationStatus = model.VerificationPending
	store.add(pending)

	disabled := servableSite(t)
	disabled.Enabled = false
	store.add(disabled)

	router := newWidgetRouter(store)

	tests := []struct {
		name string
		id   string
	}{
		{"pending verification", pending.ID},
		{"disabled", disabled.ID},
		{"unknown", ulid.Make().String()},
		{"malformed id", "not-a-ulid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/w/"+tt.id+".js", nil))

			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}
}
