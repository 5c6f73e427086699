// Package timeouts defines shared timeout constants used across services.
// Centralizing these values keeps service boundaries from drifting apart and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// DirectoryRequest caps a single read-only call to the domain-data service.
const DirectoryRequest = 3 * time.Second
