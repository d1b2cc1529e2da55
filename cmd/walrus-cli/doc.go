// Package main provides the entry point for walrus-cli.
//
// The CLI tool provides one-shot command-line access to a walrus server:
//
//   - ping checks that the server is alive
//   - get and set read and write keys, with an optional TTL
//   - rpush appends items to a list
//
// Usage:
//
//	walrus-cli [command] [flags]
//	walrus-cli --server 127.0.0.1:6379 set greeting hello --ttl 30s
package main
