// Package realtime parses realtime command flags and composes the service
// entrypoint.
package realtime

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/crewdeck/internal/platform/cmd"
	server "github.com/louisbranch/crewdeck/internal/services/realtime/app"
)

// Config holds realtime command configuration.
type Config struct {
	HTTPAddr                string `env:"CREWDECK_REALTIME_HTTP_ADDR"        envDefault:":8086"`
	StoragePath             string `env:"CREWDECK_REALTIME_STORAGE_PATH"     envDefault:"realtime.db"`
	DirectoryBaseURL        string `env:"CREWDECK_DIRECTORY_BASE_URL"        envDefault:"http://localhost:8081"`
	DirectoryResourceSecret string `env:"CREWDECK_DIRECTORY_RESOURCE_SECRET"`
	EventResourceSecret     string `env:"CREWDECK_EVENT_RESOURCE_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "realtime HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "notification ledger SQLite path")
	fs.StringVar(&cfg.DirectoryBaseURL, "directory-base-url", cfg.DirectoryBaseURL, "directory service base URL")
	fs.StringVar(&cfg.DirectoryResourceSecret, "directory-resource-secret", cfg.DirectoryResourceSecret, "directory read resource secret")
	fs.StringVar(&cfg.EventResourceSecret, "event-resource-secret", cfg.EventResourceSecret, "change-event intake resource secret")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the realtime app and starts the transport.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRealtime, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:                cfg.HTTPAddr,
			StoragePath:             cfg.StoragePath,
			DirectoryBaseURL:        cfg.DirectoryBaseURL,
			DirectoryResourceSecret: cfg.DirectoryResourceSecret,
			EventResourceSecret:     cfg.EventResourceSecret,
		}); err != nil {
			return fmt.Errorf("serve realtime: %w", err)
		}
		return nil
	})
}
