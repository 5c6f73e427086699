// Package storage defines the persistence boundary for notification records.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested notification record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// NotificationRecord stores one user notification ledger row.
type NotificationRecord struct {
	ID              string
	RecipientUserID string
	Title           string
	Body            string
	Kind            string
	TaskID          string
	ProjectID       string
	DedupeKey       string
	Source          string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationStore persists notification ledger state.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (NotificationRecord, error)
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, unreadOnly bool, limit int) ([]NotificationRecord, error)
	CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (NotificationRecord, error)
}
