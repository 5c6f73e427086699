package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/crewdeck/internal/services/notifications/domain"
	"github.com/louisbranch/crewdeck/internal/services/realtime/directory"
	"github.com/louisbranch/crewdeck/internal/services/realtime/registry"
)

type handlerDeps struct {
	registry     *registry.Registry
	dispatcher   *registry.Dispatcher
	ledger       *domain.Service
	directory    directory.Reader
	orchestrator *Orchestrator
	authorizer   wsAuthorizer
	eventSecret  string
}

type notificationJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	Read      bool   `json:"read"`
	TaskID    string `json:"task_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	CreatedAt string `json:"created_at"`
	ReadAt    string `json:"read_at,omitempty"`
}

type changeEventRequest struct {
	Event      string `json:"event"`
	TaskID     string `json:"task_id"`
	ProjectID  string `json:"project_id"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
	AssigneeID string `json:"assignee_id"`
	ActorID    string `json:"actor_id"`
	Alert      string `json:"alert"`
}

func newHandler(deps handlerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, deps)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticateRequest(w, r, deps.authorizer)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), wsUserIDContextKey{}, userID)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticateRequest(w, r, deps.authorizer)
		if !ok {
			return
		}
		listInput := domain.ListInput{
			RecipientUserID: userID,
			UnreadOnly:      r.URL.Query().Get("unread") == "1",
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			listInput.Limit = limit
		}

		notifications, err := deps.ledger.ListForRecipient(r.Context(), listInput)
		if err != nil {
			log.Printf("realtime: list notifications for user=%q failed: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		items := make([]notificationJSON, 0, len(notifications))
		for _, notification := range notifications {
			items = append(items, toNotificationJSON(notification))
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
	})

	mux.HandleFunc("POST /api/notifications/{notificationID}/read", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticateRequest(w, r, deps.authorizer)
		if !ok {
			return
		}
		notificationID := strings.TrimSpace(r.PathValue("notificationID"))
		read, err := deps.ledger.MarkRead(r.Context(), userID, notificationID)
		if err != nil {
			log.Printf("realtime: mark read id=%q user=%q failed: %v", notificationID, userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !read {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"read": true})
	})

	mux.HandleFunc("GET /api/notifications/unread_count", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticateRequest(w, r, deps.authorizer)
		if !ok {
			return
		}
		count, err := deps.ledger.CountUnread(r.Context(), userID)
		if err != nil {
			log.Printf("realtime: unread count for user=%q failed: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unread_count": count})
	})

	mux.HandleFunc("GET /internal/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.registry.Stats())
	})

	mux.HandleFunc("POST /internal/events", func(w http.ResponseWriter, r *http.Request) {
		if deps.eventSecret == "" {
			http.Error(w, "missing shared secret", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("X-Resource-Secret") != deps.eventSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var event changeEventRequest
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, "invalid event payload", http.StatusBadRequest)
			return
		}
		if !dispatchChangeEvent(r.Context(), deps.orchestrator, event) {
			http.Error(w, "unsupported event", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
	})

	return mux
}

// dispatchChangeEvent routes one intake request to the orchestrator. It
// reports false only for unknown event names; the fan-out itself is
// best-effort and never surfaces errors to the producer.
func dispatchChangeEvent(ctx context.Context, orchestrator *Orchestrator, event changeEventRequest) bool {
	switch strings.TrimSpace(event.Event) {
	case "task_status_changed":
		orchestrator.TaskStatusChanged(ctx, event.TaskID, event.OldStatus, event.NewStatus, event.ActorID)
	case "task_assigned":
		orchestrator.TaskAssigned(ctx, event.TaskID, event.AssigneeID, event.ActorID)
	case "project_updated":
		orchestrator.ProjectUpdated(ctx, event.ProjectID, event.ActorID)
	case "comment_added":
		orchestrator.CommentAdded(ctx, event.TaskID, event.ActorID)
	case "system_alert":
		orchestrator.SystemAlertPosted(ctx, event.ProjectID, event.Alert, event.ActorID)
	default:
		return false
	}
	return true
}

// authenticateRequest resolves the calling user from the session token
// cookie or bearer header, writing the failure response itself.
func authenticateRequest(w http.ResponseWriter, r *http.Request, authorizer wsAuthorizer) (string, bool) {
	if authorizer == nil {
		http.Error(w, "session auth is not configured", http.StatusServiceUnavailable)
		return "", false
	}
	accessToken := accessTokenFromRequest(r)
	if accessToken == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	userID, err := authorizer.Authenticate(r.Context(), accessToken)
	if err != nil || strings.TrimSpace(userID) == "" {
		if err != nil {
			log.Printf("realtime: unauthorized request host=%q remote=%s path=%q err=%v", r.Host, r.RemoteAddr, r.URL.Path, err)
		}
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return strings.TrimSpace(userID), true
}

func toNotificationJSON(notification domain.Notification) notificationJSON {
	item := notificationJSON{
		ID:        notification.ID,
		Title:     notification.Title,
		Body:      notification.Body,
		Kind:      string(notification.Kind),
		Read:      notification.Read(),
		TaskID:    notification.TaskID,
		ProjectID: notification.ProjectID,
		CreatedAt: notification.CreatedAt.UTC().Format(time.RFC3339),
	}
	if notification.ReadAt != nil {
		item.ReadAt = notification.ReadAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("realtime: write json response: %v", err)
	}
}
