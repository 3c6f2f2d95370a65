// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the REST + WebSocket API of the control plane.
// Handlers call the pipeline and project services directly and the lifecycle
// events those services publish are fanned out to connected WebSocket clients.
package server

import (
	"context"
	"sync"

	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/protocol"

	"github.com/rs/zerolog"
)

const defaultEventBuffer = 256

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// ChannelPublisher queues lifecycle events for the broadcaster. Publish never
// blocks; events are dropped when the queue is full.
type ChannelPublisher struct {
	events chan protocol.Event
}

// NewChannelPublisher creates a publisher with a queue of size buffer.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &ChannelPublisher{events: make(chan protocol.Event, buffer)}
}

// Publish queues event.
func (p *ChannelPublisher) Publish(event protocol.Event) {
	select {
	case p.events <- event:
	default:
		getLog().Warn().
			Str("event_type", protocol.EventTypeName(event)).
			Str("idempotency_key", protocol.GetIdempotencyKey(event)).
			Msg("Event queue full, dropping lifecycle event")
	}
}

// Events returns the receive side of the queue.
func (p *ChannelPublisher) Events() <-chan protocol.Event {
	return p.events
}

// EventBroadcaster reads every queued event and fans it out to all connected
// WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan protocol.Event
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster draining eventChan.
func NewEventBroadcaster(eventChan <-chan protocol.Event, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event protocol.Event) {
	if b.clients != nil {
		b.clients.Broadcast(event)
	}
}
