package otel

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("CREWDECK_OTEL_ENDPOINT", "")
	t.Setenv("CREWDECK_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "realtime")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupDisabledIgnoresEndpoint(t *testing.T) {
	t.Setenv("CREWDECK_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("CREWDECK_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "realtime")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}
