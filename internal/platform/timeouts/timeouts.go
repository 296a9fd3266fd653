// Package timeouts defines shared timeout constants used across shipwatch
// binaries.
package timeouts

import "time"

// Fetch caps a single gatherer call to an external system.
const Fetch = 10 * time.Second

// EvaluationBudget caps one evaluation of one project, fetches included.
// Fetch must stay strictly below it.
const EvaluationBudget = 60 * time.Second

// Notify caps one delivery to the notification webhook.
const Notify = 15 * time.Second

// HealthDial caps the wait when the CLI dials the health endpoint.
const HealthDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
