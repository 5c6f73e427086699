// Package domain holds the notification ledger use-cases.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/crewdeck/internal/platform/id"
)

var (
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrRecipientUserIDRequired indicates recipient identity is required.
	ErrRecipientUserIDRequired = errors.New("recipient user id is required")
	// ErrTitleRequired indicates a notification title is required.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrKindInvalid indicates the notification kind is outside the closed set.
	ErrKindInvalid = errors.New("notification kind is invalid")
	// ErrNotificationIDRequired indicates notification ID is required.
	ErrNotificationIDRequired = errors.New("notification id is required")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Notification captures one user-targeted durable notification record.
type Notification struct {
	ID              string
	RecipientUserID string
	Title           string
	Body            string
	Kind            Kind
	TaskID          string
	ProjectID       string
	DedupeKey       string
	Source          string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

// Read reports whether the notification has been acknowledged by its recipient.
func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// CreateInput describes one producer notification request.
type CreateInput struct {
	RecipientUserID string
	Title           string
	Body            string
	Kind            Kind
	TaskID          string
	ProjectID       string
	DedupeKey       string
	Source          string
}

// ListInput configures recipient ledger listing.
type ListInput struct {
	RecipientUserID string
	UnreadOnly      bool
	Limit           int
}

// Store is the domain persistence boundary for the notification ledger.
type Store interface {
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (Notification, error)
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, unreadOnly bool, limit int) ([]Notification, error)
	CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
}

// Service orchestrates recipient ledger lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs notification ledger use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// Create persists one unread ledger record, de-duplicated by recipient+dedupe key.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientUserIDRequired
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Notification{}, ErrTitleRequired
	}
	if !input.Kind.IsValid() {
		return Notification{}, ErrKindInvalid
	}

	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientUserID, dedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Notification{}, err
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipientUserID,
		Title:           title,
		Body:            strings.TrimSpace(input.Body),
		Kind:            input.Kind,
		TaskID:          strings.TrimSpace(input.TaskID),
		ProjectID:       strings.TrimSpace(input.ProjectID),
		DedupeKey:       dedupeKey,
		Source:          strings.TrimSpace(input.Source),
		CreatedAt:       s.nowUTC(),
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if dedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientUserID, dedupeKey)
			if lookupErr == nil {
				return existing, nil
			}
			if errors.Is(lookupErr, ErrNotFound) {
				return Notification{}, err
			}
			return Notification{}, lookupErr
		}
		return Notification{}, err
	}
	return notification, nil
}

// ListForRecipient lists one recipient's ledger newest first, bounded by Limit.
func (s *Service) ListForRecipient(ctx context.Context, input ListInput) ([]Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return nil, ErrRecipientUserIDRequired
	}
	limit := input.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return s.store.ListNotificationsByRecipient(ctx, recipientUserID, input.UnreadOnly, limit)
}

// CountUnread returns the unread ledger count for one recipient.
func (s *Service) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientUserIDRequired
	}
	return s.store.CountUnreadNotificationsByRecipient(ctx, recipientUserID)
}

// MarkRead acknowledges one recipient notification.
//
// It returns false when the record does not exist or belongs to another user;
// the two cases are indistinguishable on purpose. Re-acknowledging an already
// read notification returns true and keeps the original read timestamp.
func (s *Service) MarkRead(ctx context.Context, recipientUserID string, notificationID string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return false, ErrRecipientUserIDRequired
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return false, ErrNotificationIDRequired
	}
	_, err := s.store.MarkNotificationRead(ctx, recipientUserID, notificationID, s.nowUTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
