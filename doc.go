// Package corgi is a recommendation middleware that sits between Mastodon clients
// and their home instance, injecting recommended posts into the home timeline.

// The code is organized into subpackages:

// - cmd/server: the HTTP API server
// - cmd/seed: cold-start pool and development data generator
// - cmd/cli: command-line client for privacy, profile and metrics endpoints
// - internal/injection: timeline orchestration (fetch, source, merge)
// - internal/placement: strategies that decide where candidates go
// - internal/candidates: cold-start and personalized candidate sources
// - internal/signals: per-user signal profiles and promotion rules
// - internal/privacy: per-user tracking levels
// - internal/interactions: interaction logging
// - internal/upstream: Mastodon API client
// - internal/recommendations: Gorse integration
// - internal/metrics: Prometheus collectors, injection events and CTR
// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/middleware: HTTP middleware (identity, request ids, logging, tracing)
// - internal/database: Database connection and migrations

// See the individual package documentation for detailed API reference.
package corgi
