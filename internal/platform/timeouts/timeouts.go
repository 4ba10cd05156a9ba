// Package timeouts defines shared timeout constants used by the hub process.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the handling time of one REST request. WebSocket upgrades are
// exempt.
const Request = 30 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// Processor caps a single call to the payment processor.
const Processor = 10 * time.Second

// Publish caps a single domain event publish.
const Publish = 3 * time.Second
