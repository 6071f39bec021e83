// Package server exposes the mail client over a local REST API.
//
// The API mirrors the CLI surface: authentication status and logout,
// folder listings, single messages, delta synchronization, sending, and
// read flags. Health endpoints (/healthz, /readyz) follow the usual probe
// conventions and /metrics serves Prometheus metrics.
//
// The server binds to localhost by default. It performs no authentication
// of its own; whoever can reach it acts as the signed-in account.
package server
