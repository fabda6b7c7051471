package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dheerajmandava/proovd-sub004/internal/metrics"
	"github.com/dheerajmandava/proovd-sub004/internal/model"
	"github.com/dheerajmandava/proovd-sub004/internal/repository"
)

// Notification errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidTrackAction   = errors.New("invalid track action")
	ErrInvalidClientID      = errors.New("invalid client id")
)

// listFetchFactor over-fetches active notifications so page targeting can
// filter without starving the widget of its display quota.
const listFetchFactor = 4

// NotificationStore is the persistence surface the service needs.
type NotificationStore interface {
	ListActive(ctx context.Context, websiteID string, limit int) ([]*model.Notification, error)
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	RecordEvent(ctx context.Context, event *model.NotificationEvent) (bool, error)
}

// NotificationService serves widget notification feeds and records
// display and click interactions.
type NotificationService struct {
	websites *WebsiteService
	store    NotificationStore
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(websites *WebsiteService, store NotificationStore, logger *slog.Logger, recorder metrics.Recorder) *NotificationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &NotificationService{
		websites: websites,
		store:    store,
		logger:   logger.With("component", "service.notification"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// ListForWidget returns the notifications a widget on the given page may
// show, capped by the site's max-notifications setting, along with the
// site's display settings so the feed response can carry timings.
func (s *NotificationService) ListForWidget(ctx context.Context, apiKey, page string) ([]*model.Notification, model.WebsiteSettings, error) {
	site, err := s.websites.Resolve(ctx, apiKey)
	if err != nil {
		return nil, model.WebsiteSettings{}, err
	}

	maxCount := site.Settings.MaxNotifications
	if maxCount <= 0 {
		maxCount = model.DefaultSettings().MaxNotifications
	}

	candidates, err := s.store.ListActive(ctx, site.ID, maxCount*listFetchFactor)
	if err != nil {
		return nil, model.WebsiteSettings{}, fmt.Errorf("list notifications: %w", err)
	}

	matched := make([]*model.Notification, 0, maxCount)
	for _, n := range candidates {
		if !n.MatchesPage(page) {
			continue
		}
		matched = append(matched, n)
		if len(matched) == maxCount {
			break
		}
	}

	return matched, site.Settings, nil
}

// TrackInput defines input for recording a notification interaction.
type TrackInput struct {
	APIKey         string
	NotificationID string
	ClientID       string
	Action         string
}

// Track records one interaction at most once per (notification, client,
// action). Duplicate reports succeed without counting. A notification
// belonging to a different website than the key resolves to is reported
// as not found, same as a nonexistent one.
func (s *NotificationService) Track(ctx context.Context, input TrackInput) (bool, error) {
	site, err := s.websites.Resolve(ctx, input.APIKey)
	if err != nil {
		return false, err
	}

	if !clientIDRegex.MatchString(input.ClientID) {
		return false, ErrInvalidClientID
	}

	action, err := model.ParseTrackAction(input.Action)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidTrackAction, input.Action)
	}

	// Existence check keeps the composite insert from failing on the FK
	// with an opaque error.
	notification, err := s.store.GetByID(ctx, input.NotificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return false, ErrNotificationNotFound
		}
		return false, err
	}
	if notification.WebsiteID != site.ID {
		return false, ErrNotificationNotFound
	}

	recorded, err := s.store.RecordEvent(ctx, &model.NotificationEvent{
		NotificationID: input.NotificationID,
		ClientID:       input.ClientID,
		Action:         action,
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}

	if recorded {
		s.metrics.IncTrackRecorded(string(action))
	} else {
		s.metrics.IncTrackDuplicate(string(action))
	}

	return recorded, nil
}
