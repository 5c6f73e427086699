// Package server composes the notification ledger over its storage boundary.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/crewdeck/internal/services/notifications/domain"
	"github.com/louisbranch/crewdeck/internal/services/notifications/storage"
)

type domainStoreAdapter struct {
	store storage.NotificationStore
}

// NewDomainStore adapts a storage.NotificationStore to the domain boundary.
func NewDomainStore(store storage.NotificationStore) domain.Store {
	return &domainStoreAdapter{store: store}
}

// NewLedger builds the ledger service over a storage implementation.
func NewLedger(store storage.NotificationStore) *domain.Service {
	return domain.NewService(NewDomainStore(store), nil, nil)
}

func (a *domainStoreAdapter) GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (domain.Notification, error) {
	if a == nil || a.store == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientUserID, dedupeKey)
	if err != nil {
		return domain.Notification{}, mapStorageError(err)
	}
	return toDomainNotification(record), nil
}

func (a *domainStoreAdapter) PutNotification(ctx context.Context, notification domain.Notification) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.store.PutNotification(ctx, toStorageNotification(notification)))
}

func (a *domainStoreAdapter) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListNotificationsByRecipient(ctx, recipientUserID, unreadOnly, limit)
	if err != nil {
		return nil, mapStorageError(err)
	}
	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		notifications = append(notifications, toDomainNotification(record))
	}
	return notifications, nil
}

func (a *domainStoreAdapter) CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error) {
	if a == nil || a.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	count, err := a.store.CountUnreadNotificationsByRecipient(ctx, recipientUserID)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return count, nil
}

func (a *domainStoreAdapter) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (domain.Notification, error) {
	if a == nil || a.store == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.MarkNotificationRead(ctx, recipientUserID, notificationID, readAt)
	if err != nil {
		return domain.Notification{}, mapStorageError(err)
	}
	return toDomainNotification(record), nil
}

func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	default:
		return err
	}
}

func toDomainNotification(record storage.NotificationRecord) domain.Notification {
	return domain.Notification{
		ID:              record.ID,
		RecipientUserID: record.RecipientUserID,
		Title:           record.Title,
		Body:            record.Body,
		Kind:            domain.Kind(record.Kind),
		TaskID:          record.TaskID,
		ProjectID:       record.ProjectID,
		DedupeKey:       record.DedupeKey,
		Source:          record.Source,
		CreatedAt:       record.CreatedAt,
		ReadAt:          record.ReadAt,
	}
}

func toStorageNotification(notification domain.Notification) storage.NotificationRecord {
	return storage.NotificationRecord{
		ID:              notification.ID,
		RecipientUserID: notification.RecipientUserID,
		Title:           notification.Title,
		Body:            notification.Body,
		Kind:            notification.Kind.String(),
		TaskID:          notification.TaskID,
		ProjectID:       notification.ProjectID,
		DedupeKey:       notification.DedupeKey,
		Source:          notification.Source,
		CreatedAt:       notification.CreatedAt,
		ReadAt:          notification.ReadAt,
	}
}
