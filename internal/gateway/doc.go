// ABOUTME: Package gateway serves authenticated websocket connections
// ABOUTME: Tracks per-connection identity, room membership and message fan-out

// Package gateway owns the real-time side of parley. Each websocket
// connection is authenticated during the handshake and bound to one user
// for its whole lifetime. Connections join conversation rooms after a
// participant check, and persisted messages are relayed to every
// connection currently in the room, including the sender's own. Room
// membership lives only in memory; a disconnect purges it and touches no
// persisted state.
package gateway
