// ABOUTME: Package conversation resolves canonical two-party conversations
// ABOUTME: Handles create-or-get, participant checks, appends and history pagination

// Package conversation is the central layer for conversation identity and
// message persistence. Every unordered user pair maps to exactly one
// conversation row; the canonical (low, high) ordering plus a store-level
// uniqueness constraint closes the create race, and creation conflicts
// are absorbed by re-fetching. All message writes flow through
// AppendMessage, which re-validates participation on every call.
package conversation
