// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the events the control plane publishes to
// subscribers of the lifecycle stream.
package protocol

// Metadata contains common fields carried by every event.
type Metadata struct {
	// IdempotencyKey is used for event deduplication by subscribers.
	// Optional - events without this key will always be processed
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Version indicates the protocol version for backward compatibility.
	// Format: "v{major}.{minor}.{patch}" (e.g., "v1.0.0")
	Version string `json:"version"`

	// Operator is the identity that caused the event, when known.
	Operator string `json:"operator,omitempty"`

	// Timestamp is the emission time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// CurrentProtocolVersion defines the current version of the protocol.
// This should be updated when making breaking changes to the protocol.
const CurrentProtocolVersion = "v1.0.0"

// Event is anything that can be sent through the event stream.
type Event interface {
	GetMetadata() Metadata
}

// GetIdempotencyKey extracts the idempotency key from any event
func GetIdempotencyKey(event Event) string {
	return event.GetMetadata().IdempotencyKey
}
