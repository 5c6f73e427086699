package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/crewdeck/internal/services/realtime/registry"
)

const (
	tokenCookieName = "cd_token"

	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
	maxSubscribeProjects   = 100
)

// clientFrame is an inbound control message on the live connection.
type clientFrame struct {
	Type       string   `json:"type"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

type subscriptionPayload struct {
	SubscribedProjects []string `json:"subscribed_projects"`
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer is the live transport for one connected client. Writes are
// serialized by a mutex so concurrent broadcasts never interleave frames.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	conn    *websocket.Conn
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		encoder: json.NewEncoder(conn),
		conn:    conn,
	}
}

// Send writes one envelope to the client.
func (p *wsPeer) Send(envelope registry.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(envelope)
}

// Close tears down the underlying websocket connection.
func (p *wsPeer) Close() error {
	return p.conn.Close()
}

type wsUserIDContextKey struct{}

func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func handleWSConn(conn *websocket.Conn, deps handlerDeps) {
	defer func() {
		_ = conn.Close()
	}()

	userID := ""
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(wsUserIDContextKey{}).(string); ok {
			userID = strings.TrimSpace(resolved)
		}
	}
	if userID == "" {
		return
	}

	conn.MaxPayloadBytes = maxFramePayloadBytes
	peer := newWSPeer(conn)
	deps.registry.Connect(userID, peer)
	defer deps.registry.ReleaseTransport(userID, peer)

	subscribeMemberships(conn.Request().Context(), deps, userID)

	_ = peer.Send(registry.Envelope{
		Type: "connection_established",
		Data: mustJSON(subscriptionPayload{
			SubscribedProjects: nonNilStrings(deps.registry.ProjectsFor(userID)),
		}),
	})

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame clientFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				_ = writeWSError(peer, "INVALID_ARGUMENT", "frame payload too large")
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "heartbeat":
			_ = peer.Send(registry.Envelope{Type: "heartbeat_response"})
		case "subscribe_projects":
			if len(frame.ProjectIDs) > maxSubscribeProjects {
				_ = writeWSError(peer, "INVALID_ARGUMENT", "too many project ids")
				continue
			}
			deps.registry.Subscribe(userID, frame.ProjectIDs)
			_ = peer.Send(registry.Envelope{
				Type: "subscription_updated",
				Data: mustJSON(subscriptionPayload{
					SubscribedProjects: nonNilStrings(deps.registry.ProjectsFor(userID)),
				}),
			})
		default:
			_ = writeWSError(peer, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

// subscribeMemberships seeds the connection's subscriptions from the user's
// current project memberships. Directory outages degrade to an empty set; the
// client can still subscribe explicitly.
func subscribeMemberships(ctx context.Context, deps handlerDeps, userID string) {
	if deps.directory == nil {
		return
	}
	projectIDs, err := deps.directory.ListProjectIDsForUser(ctx, userID)
	if err != nil {
		log.Printf("realtime: resolve memberships for user=%q failed: %v", userID, err)
		return
	}
	deps.registry.Subscribe(userID, projectIDs)
}

func writeWSError(peer *wsPeer, code string, message string) error {
	return peer.Send(registry.Envelope{
		Type: "error",
		Data: mustJSON(wsErrorPayload{Code: code, Message: message}),
	})
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
