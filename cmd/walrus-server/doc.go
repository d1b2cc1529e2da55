// Package main provides the entry point for walrus-server.
//
// The server is a single-process in-memory key/value store that speaks a
// Redis-compatible wire protocol:
//
//   - PING, GET, SET (with EX/PX expiration) and RPUSH
//   - per-key expiration with a background reaper
//   - optional Prometheus metrics endpoint
//
// Usage:
//
//	walrus-server [flags]
//	walrus-server --config /path/to/config.yaml
//
// The server loads configuration from the file and WALRUS_ prefixed
// environment variables, then serves until SIGINT or SIGTERM.
package main
