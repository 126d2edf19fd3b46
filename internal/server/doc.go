// Package server implements the WebSocket transport and HTTP surface of the
// chat relay.
//
// The implementation is organized into specialized files for configuration,
// the gateway, connections, origin checking, and rate limiting to keep the
// codebase maintainable and testable as the project grows.
package server
