package realtime

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("realtime", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8086" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoragePath != "realtime.db" {
		t.Fatalf("expected default storage path, got %q", cfg.StoragePath)
	}
	if cfg.DirectoryBaseURL != "http://localhost:8081" {
		t.Fatalf("expected default directory base url, got %q", cfg.DirectoryBaseURL)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CREWDECK_REALTIME_HTTP_ADDR", "env-addr")
	t.Setenv("CREWDECK_REALTIME_STORAGE_PATH", "env-path")
	t.Setenv("CREWDECK_DIRECTORY_BASE_URL", "env-url")
	t.Setenv("CREWDECK_EVENT_RESOURCE_SECRET", "env-secret")

	fs := flag.NewFlagSet("realtime", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-storage-path", "flag-path",
		"-directory-base-url", "flag-url",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoragePath != "flag-path" {
		t.Fatalf("expected flag storage path, got %q", cfg.StoragePath)
	}
	if cfg.DirectoryBaseURL != "flag-url" {
		t.Fatalf("expected flag directory base url, got %q", cfg.DirectoryBaseURL)
	}
	if cfg.EventResourceSecret != "env-secret" {
		t.Fatalf("expected env event secret, got %q", cfg.EventResourceSecret)
	}
}
