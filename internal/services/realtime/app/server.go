// Package server hosts the real-time notification process: the connection
// registry, broadcast dispatcher, change-event orchestrator, websocket
// transport, and the ledger's HTTP query surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/crewdeck/internal/platform/timeouts"
	notifserver "github.com/louisbranch/crewdeck/internal/services/notifications/app"
	"github.com/louisbranch/crewdeck/internal/services/notifications/storage/sqlite"
	"github.com/louisbranch/crewdeck/internal/services/realtime/directory"
	"github.com/louisbranch/crewdeck/internal/services/realtime/registry"
)

// Config defines the inputs for the real-time transport boundary.
type Config struct {
	HTTPAddr                string
	StoragePath             string
	DirectoryBaseURL        string
	DirectoryResourceSecret string
	EventResourceSecret     string
	ReadHeaderTimeout       time.Duration
	ShutdownTimeout         time.Duration
}

// Server hosts the real-time HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// NewServer builds a configured real-time server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.StoragePath) == "" {
		return nil, errors.New("storage path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open notification store: %w", err)
	}

	sessionConfig, err := LoadSessionTokenConfigFromEnv(nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load session token config: %w", err)
	}
	authorizer := newSessionTokenAuthorizer(sessionConfig)
	if authorizer == nil {
		log.Printf("realtime: session token auth is not configured, client surfaces disabled")
	}

	reader := directory.NewHTTPGateway(config.DirectoryBaseURL, config.DirectoryResourceSecret)
	var dirReader directory.Reader
	if reader != nil {
		dirReader = reader
	} else {
		log.Printf("realtime: directory gateway is not configured, membership resolution disabled")
	}

	reg := registry.New()
	dispatcher := registry.NewDispatcher(reg)
	ledger := notifserver.NewLedger(store)

	deps := handlerDeps{
		registry:     reg,
		dispatcher:   dispatcher,
		ledger:       ledger,
		directory:    dirReader,
		orchestrator: NewOrchestrator(dirReader, ledger, dispatcher),
		authorizer:   authorizer,
		eventSecret:  strings.TrimSpace(config.EventResourceSecret),
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(deps),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a real-time server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init realtime server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve realtime: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("realtime server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close notification store: %v", err)
		}
	}
}
