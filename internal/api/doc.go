// Package api implements the HTTP REST API and throttle WebSocket for
// TrainLink.
//
// This package provides:
//   - REST endpoints for loco CRUD and throttle commands under /api/v1/locos
//   - A WebSocket endpoint where front ends bind throttle IDs to locos and
//     receive live throttle updates and registry events
//   - Prometheus metrics at /metrics and a JSON status summary
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// Loco identifiers in paths are parsed with loco.ParseIdentifier: digits
// select an address, anything else a name, and a "name:" prefix forces a
// name (for locos named "66").
//
// Registry changes made through the API are written to the repository
// when one is configured. Persistence is best effort: the in-memory
// registry remains authoritative and write failures are only logged.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
