package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

func TestNotificationService_ListForWidget_PageTargeting(t *testing.T) {
	svc, site, store := newNotificationTestService(t)

	store.add(&model.Notification{
		ID: "n-all", WebsiteID: site.ID, Status: model.NotificationActive,
		Title: "all pages",
	})
	store.add(&model.Notification{
		ID: "n-pricing", WebsiteID: site.ID, Status: model.NotificationActive,
		Title: "pricing only", TargetPages: []string{"/pricing"},
	})
	store.add(&model.Notification{
		ID: "n-checkout", WebsiteID: site.ID, Status: model.NotificationActive,
		Title: "checkout prefix", TargetPages: []string{"/checkout/*"},
	})

	list, settings, err := svc.ListForWidget(context.Background(), site.APIKey, "/checkout/step-2")
	if err != nil {
		t.Fatalf("ListForWidget failed: %v", err)
	}
	if settings.DisplayDurationMs != site.Settings.DisplayDurationMs {
		t.Errorf("settings DisplayDurationMs = %d, want %d",
			settings.DisplayDurationMs, site.Settings.DisplayDurationMs)
	}

	ids := make(map[string]bool, len(list))
	for _, n := range list {
		ids[n.ID] = true
	}
	if !ids["n-all"] || !ids["n-checkout"] || ids["n-pricing"] {
		t.Errorf("matched ids = %v, want n-all and n-checkout only", ids)
	}
}

func TestNotificationService_ListForWidget_CapsAtSetting(t *testing.T) {
	svc, site, store := newNotificationTestService(t)
	site.Settings.MaxNotifications = 2

	for i := 0; i < 5; i++ {
		store.add(&model.Notification{
			ID:        fmt.Sprintf("n-%d", i),
			WebsiteID: site.ID,
			Status:    model.NotificationActive,
		})
	}

	list, _, err := svc.ListForWidget(context.Background(), site.APIKey, "/")
	if err != nil {
		t.Fatalf("ListForWidget failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want capped at 2", len(list))
	}
}

func TestNotificationService_ListForWidget_Unauthorized(t *testing.T) {
	svc, _, _ := newNotificationTestService(t)

	_, _, err := svc.ListForWidget(context.Background(), "pv_test_00000000000000000000000000000000", "/")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got: %v", err)
	}
}

func TestNotificationService_Track(t *testing.T) {
	svc, site, store := newNotificationTestService(t)
	store.add(&model.Notification{
		ID: "n-1", WebsiteID: site.ID, Status: model.NotificationActive,
	})

	input := TrackInput{APIKey: site.APIKey, NotificationID: "n-1", ClientID: "client-a", Action: "display"}

	recorded, err := svc.Track(context.Background(), input)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if !recorded {
		t.Error("first track should be recorded")
	}

	// Retried delivery is accepted but not counted.
	recorded, err = svc.Track(context.Background(), input)
	if err != nil {
		t.Fatalf("Track (retry) failed: %v", err)
	}
	if recorded {
		t.Error("duplicate track should not be recorded")
	}
}

func TestNotificationService_Track_Invalid(t *testing.T) {
	svc, site, store := newNotificationTestService(t)
	store.add(&model.Notification{
		ID: "n-1", WebsiteID: site.ID, Status: model.NotificationActive,
	})

	_, err := svc.Track(context.Background(), TrackInput{
		APIKey: site.APIKey, NotificationID: "n-1", ClientID: "client-a", Action: "hover",
	})
	if !errors.Is(err, ErrInvalidTrackAction) {
		t.Errorf("Expected ErrInvalidTrackAction, got: %v", err)
	}

	_, err = svc.Track(context.Background(), TrackInput{
		APIKey: site.APIKey, NotificationID: "n-1", ClientID: "bad client id!", Action: "click",
	})
	if !errors.Is(err, ErrInvalidClientID) {
		t.Errorf("Expected ErrInvalidClientID, got: %v", err)
	}

	_, err = svc.Track(context.Background(), TrackInput{
		APIKey: site.APIKey, NotificationID: "missing", ClientID: "client-a", Action: "click",
	})
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("Expected ErrNotificationNotFound, got: %v", err)
	}

	_, err = svc.Track(context.Background(), TrackInput{
		APIKey: "pv_test_00000000000000000000000000000000", NotificationID: "n-1",
		ClientID: "client-a", Action: "click",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for unknown key, got: %v", err)
	}
}

func TestNotificationService_Track_ForeignNotification(t *testing.T) {
	svc, site, store := newNotificationTestService(t)
	store.add(&model.Notification{
		ID: "n-other", WebsiteID: "some-other-site", Status: model.NotificationActive,
	})

	// A notification owned by a different website looks exactly like a
	// missing one to the caller.
	_, err := svc.Track(context.Background(), TrackInput{
		APIKey: site.APIKey, NotificationID: "n-other", ClientID: "client-a", Action: "click",
	})
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("Expected ErrNotificationNotFound for foreign notification, got: %v", err)
	}
}

// ============================================================================
// Fakes
// ============================================================================

type fakeNotificationStore struct {
	mu       sync.Mutex
	byID     map[string]*model.Notification
	order    []string
	recorded map[string]bool
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{
		byID:     make(map[string]*model.Notification),
		recorded: make(map[string]bool),
	}
}

func (s *fakeNotificationStore) add(n *model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[n.ID] = n
	s.order = append(s.order, n.ID)
}

func (s *fakeNotificationStore) ListActive(_ context.Context, websiteID string, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for _, id := range s.order {
		n := s.byID[id]
		if n.WebsiteID != websiteID || !n.IsActive() || n.DisplayBudgetExhausted() {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) GetByID(_ context.Context, id string) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotificationNotFound
	}
	return n, nil
}

func (s *fakeNotificationStore) RecordEvent(_ context.Context, event *model.NotificationEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := event.NotificationID + "|" + event.ClientID + "|" + string(event.Action)
	if s.recorded[key] {
		return false, nil
	}
	s.recorded[key] = true
	n := s.byID[event.NotificationID]
	switch event.Action {
	case model.ActionDisplay:
		n.DisplayCount++
	case model.ActionClick:
		n.ClickCount++
	}
	return true, nil
}

func newNotificationTestService(t *testing.T) (*NotificationService, *model.Website, *fakeNotificationStore) {
	t.Helper()
	wstore, _, websites := newWebsiteTestService(t)

	site := servableSite(t, "notif.example.com")
	wstore.add(site)

	store := newFakeNotificationStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewNotificationService(websites, store, logger, nil)
	return svc, site, store
}
