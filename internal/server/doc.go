// Package server implements the HTTP and WebSocket transport for roomchat.
//
// A Server owns one Hub, which tracks live connections, and one
// registry.Registry, which holds rooms and sessions. Each WebSocket connection
// becomes a Client whose read pump decodes JSON frames and dispatches them to
// the registry; the Hub implements registry.Notifier and fans events back out
// to clients through their buffered send channels.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, frame dispatch, routing, and HTTP handlers.
package server
