package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/crewdeck/internal/services/notifications/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testRecord(id string, recipient string, createdAt time.Time) storage.NotificationRecord {
	return storage.NotificationRecord{
		ID:              id,
		RecipientUserID: recipient,
		Title:           "Task status changed",
		Body:            "Design review moved to in progress.",
		Kind:            "status-change",
		TaskID:          "task-1",
		ProjectID:       "project-1",
		Source:          "realtime",
		CreatedAt:       createdAt,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestPutAndListNotifications(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("n-%d", i), "user-1", base.Add(time.Duration(i)*time.Minute))
		if err := store.PutNotification(ctx, record); err != nil {
			t.Fatalf("put notification %d: %v", i, err)
		}
	}
	if err := store.PutNotification(ctx, testRecord("other", "user-2", base)); err != nil {
		t.Fatalf("put other-user notification: %v", err)
	}

	records, err := store.ListNotificationsByRecipient(ctx, "user-1", false, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(records))
	}
	if records[0].ID != "n-2" || records[2].ID != "n-0" {
		t.Fatalf("expected newest-first ordering, got %q then %q", records[0].ID, records[2].ID)
	}
	if records[0].TaskID != "task-1" || records[0].ProjectID != "project-1" {
		t.Fatalf("expected linked ids preserved, got task=%q project=%q", records[0].TaskID, records[0].ProjectID)
	}
}

func TestListNotificationsHonorsLimitAndUnreadFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		record := testRecord(fmt.Sprintf("n-%d", i), "user-1", base.Add(time.Duration(i)*time.Second))
		if err := store.PutNotification(ctx, record); err != nil {
			t.Fatalf("put notification %d: %v", i, err)
		}
	}
	if _, err := store.MarkNotificationRead(ctx, "user-1", "n-7", base.Add(time.Hour)); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread, err := store.ListNotificationsByRecipient(ctx, "user-1", true, 5)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 5 {
		t.Fatalf("expected limit of 5, got %d", len(unread))
	}
	for _, record := range unread {
		if record.ReadAt != nil {
			t.Fatalf("expected only unread records, got read %q", record.ID)
		}
		if record.ID == "n-7" {
			t.Fatal("expected read record excluded from unread listing")
		}
	}
}

func TestCountUnreadNotificationsByRecipient(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("n-%d", i), "user-1", base.Add(time.Duration(i)*time.Second))
		if err := store.PutNotification(ctx, record); err != nil {
			t.Fatalf("put notification %d: %v", i, err)
		}
	}
	if _, err := store.MarkNotificationRead(ctx, "user-1", "n-0", base.Add(time.Hour)); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	count, err := store.CountUnreadNotificationsByRecipient(ctx, "user-1")
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}
}

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	if err := store.PutNotification(ctx, testRecord("n-1", "user-1", base)); err != nil {
		t.Fatalf("put notification: %v", err)
	}

	first, err := store.MarkNotificationRead(ctx, "user-1", "n-1", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("first mark read: %v", err)
	}
	if first.ReadAt == nil || !first.ReadAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected read_at from first call, got %v", first.ReadAt)
	}

	second, err := store.MarkNotificationRead(ctx, "user-1", "n-1", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if second.ReadAt == nil || !second.ReadAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected read_at unchanged by second call, got %v", second.ReadAt)
	}
}

func TestMarkNotificationReadEnforcesOwnership(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	if err := store.PutNotification(ctx, testRecord("n-1", "user-1", base)); err != nil {
		t.Fatalf("put notification: %v", err)
	}

	if _, err := store.MarkNotificationRead(ctx, "user-2", "n-1", base.Add(time.Minute)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for cross-user mark read, got %v", err)
	}
	if _, err := store.MarkNotificationRead(ctx, "user-1", "missing", base.Add(time.Minute)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for missing id, got %v", err)
	}
}

func TestDedupeKeyLookupAndConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	record := testRecord("n-1", "user-1", base)
	record.DedupeKey = "task-1:completed"
	if err := store.PutNotification(ctx, record); err != nil {
		t.Fatalf("put notification: %v", err)
	}

	found, err := store.GetNotificationByRecipientAndDedupeKey(ctx, "user-1", "task-1:completed")
	if err != nil {
		t.Fatalf("get by dedupe key: %v", err)
	}
	if found.ID != "n-1" {
		t.Fatalf("expected n-1, got %q", found.ID)
	}

	duplicate := testRecord("n-2", "user-1", base.Add(time.Second))
	duplicate.DedupeKey = "task-1:completed"
	if err := store.PutNotification(ctx, duplicate); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for duplicate dedupe key, got %v", err)
	}

	// The same key under a different recipient is a distinct row.
	other := testRecord("n-3", "user-2", base)
	other.DedupeKey = "task-1:completed"
	if err := store.PutNotification(ctx, other); err != nil {
		t.Fatalf("put other-recipient notification: %v", err)
	}

	if _, err := store.GetNotificationByRecipientAndDedupeKey(ctx, "user-1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for missing dedupe key, got %v", err)
	}
}

func TestNotificationsWithoutDedupeKeyDoNotConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	if err := store.PutNotification(ctx, testRecord("n-1", "user-1", base)); err != nil {
		t.Fatalf("put first notification: %v", err)
	}
	if err := store.PutNotification(ctx, testRecord("n-2", "user-1", base.Add(time.Second))); err != nil {
		t.Fatalf("put second notification without dedupe key: %v", err)
	}
}
