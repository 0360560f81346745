// Package registry implements the authoritative in-memory table of chat rooms
// for the roomchat server.
//
// A Registry maps room names to their members (connection to username) and an
// append-only message log, and remembers which room and username each
// connection last joined with. Every operation runs under a single mutex and
// publishes its effects through a Notifier before the lock is released, so
// member and room lists reach subscribers in the same order the mutations
// happened.
//
// The package knows nothing about sockets. The transport layer mints a ConnID
// per connection, forwards inbound events to the Registry, and implements
// Notifier to deliver outbound events.
package registry
