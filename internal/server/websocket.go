// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/protocol"
)

const (
	maxMessageSize = 4096
	maxFilters     = 50
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	maxClients     = 1000
	clientBuffer   = 64
)

// Stream message types.
const (
	msgSubscribe    = "subscribe"
	msgUnsubscribe  = "unsubscribe"
	msgSubscribed   = "subscribed"
	msgUnsubscribed = "unsubscribed"
	msgEvent        = "event"
	msgError        = "error"
)

// Event kinds a filter can select.
const (
	kindPipeline = "pipeline"
	kindProject  = "project"
)

// newUpgrader accepts any origin when allowedOrigins is empty.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// SubscriptionFilter selects lifecycle events for a stream client. Empty
// fields match everything. Status only matches pipeline events.
type SubscriptionFilter struct {
	Kind       string `json:"kind,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
	PipelineID string `json:"pipelineId,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (f SubscriptionFilter) isZero() bool {
	return f == SubscriptionFilter{}
}

func (f SubscriptionFilter) validate() error {
	switch f.Kind {
	case "", kindPipeline, kindProject:
	default:
		return fmt.Errorf("unknown event kind %q", f.Kind)
	}
	if f.Status != "" && !models.PipelineStatus(f.Status).Valid() {
		return fmt.Errorf("unknown pipeline status %q", f.Status)
	}
	if f.Kind == kindProject && (f.PipelineID != "" || f.Status != "") {
		return errors.New("project events carry no pipeline id or status")
	}
	return nil
}

func (f SubscriptionFilter) matches(kind string, scope eventScope) bool {
	switch {
	case f.Kind != "" && f.Kind != kind:
		return false
	case f.ProjectID != "" && f.ProjectID != scope.projectID:
		return false
	case f.PipelineID != "" && f.PipelineID != scope.pipelineID:
		return false
	case f.Status != "" && f.Status != scope.status:
		return false
	}
	return true
}

// filterFromQuery reads an initial filter from the upgrade request, e.g.
// /ws?projectId=p1&status=Failed.
func filterFromQuery(q url.Values) SubscriptionFilter {
	return SubscriptionFilter{
		Kind:       q.Get("kind"),
		ProjectID:  q.Get("projectId"),
		PipelineID: q.Get("pipelineId"),
		Status:     q.Get("status"),
	}
}

// projectScoped, pipelineScoped and statusScoped let events declare what a
// filter can match on without this file enumerating every event type.
type projectScoped interface {
	GetProjectID() string
}

type pipelineScoped interface {
	GetPipelineID() string
}

type statusScoped interface {
	GetStatus() string
}

type eventScope struct {
	projectID  string
	pipelineID string
	status     string
}

func scopeOf(event protocol.Event) eventScope {
	var s eventScope
	if e, ok := event.(projectScoped); ok {
		s.projectID = e.GetProjectID()
	}
	if e, ok := event.(pipelineScoped); ok {
		s.pipelineID = e.GetPipelineID()
	}
	if e, ok := event.(statusScoped); ok {
		s.status = e.GetStatus()
	}
	return s
}

// wsMessage is a client request: subscribe or unsubscribe one filter.
type wsMessage struct {
	Type    string             `json:"type"`
	Filters SubscriptionFilter `json:"filters"`
}

// wsOutMessage is everything the server writes to a client.
type wsOutMessage struct {
	Type      string               `json:"type"`
	EventType string               `json:"eventType,omitempty"`
	Payload   interface{}          `json:"payload,omitempty"`
	Filters   []SubscriptionFilter `json:"filters,omitempty"`
	Message   string               `json:"message,omitempty"`
}

func marshalEvent(event protocol.Event) ([]byte, error) {
	return json.Marshal(wsOutMessage{
		Type:      msgEvent,
		EventType: protocol.EventTypeName(event),
		Payload:   event,
	})
}

// wsClient is one connected stream subscriber.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	filters []SubscriptionFilter
	mu      sync.RWMutex
}

// matchesAny reports whether event passes any filter. A client without
// filters receives everything.
func (c *wsClient) matchesAny(event protocol.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filters) == 0 {
		return true
	}

	kind, scope := protocol.EventTypeName(event), scopeOf(event)
	for _, f := range c.filters {
		if f.matches(kind, scope) {
			return true
		}
	}
	return false
}

// handle applies a client request and returns the reply to send back.
func (c *wsClient) handle(raw []byte) wsOutMessage {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return wsOutMessage{Type: msgError, Message: "message is not valid JSON"}
	}
	if err := msg.Filters.validate(); err != nil {
		return wsOutMessage{Type: msgError, Message: err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case msgSubscribe:
		if len(c.filters) >= maxFilters {
			return wsOutMessage{Type: msgError, Message: fmt.Sprintf("at most %d filters per connection", maxFilters)}
		}
		c.filters = append(c.filters, msg.Filters)
		return wsOutMessage{Type: msgSubscribed, Filters: c.snapshotFilters()}
	case msgUnsubscribe:
		c.filters = removeFilter(c.filters, msg.Filters)
		return wsOutMessage{Type: msgUnsubscribed, Filters: c.snapshotFilters()}
	default:
		return wsOutMessage{Type: msgError, Message: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

// snapshotFilters copies the filter list; callers hold c.mu.
func (c *wsClient) snapshotFilters() []SubscriptionFilter {
	out := make([]SubscriptionFilter, len(c.filters))
	copy(out, c.filters)
	return out
}

// reply queues a control message without blocking the read loop.
func (c *wsClient) reply(msg wsOutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal WebSocket reply")
		return
	}
	select {
	case c.send <- data:
	default:
		getLog().Warn().Str("type", msg.Type).Msg("Dropping reply for slow WebSocket client")
	}
}

func removeFilter(filters []SubscriptionFilter, target SubscriptionFilter) []SubscriptionFilter {
	result := make([]SubscriptionFilter, 0, len(filters))
	for _, f := range filters {
		if f != target {
			result = append(result, f)
		}
	}
	return result
}

// ClientRegistry tracks the connected stream clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[*wsClient]struct{})}
}

// Len returns the number of connected clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast sends event to every client with a matching filter. Slow clients
// miss the event rather than stall the broadcaster.
func (r *ClientRegistry) Broadcast(event protocol.Event) {
	data, err := marshalEvent(event)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal event for WebSocket broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if !c.matchesAny(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			getLog().Warn().Str("idempotency_key", protocol.GetIdempotencyKey(event)).
				Msg("Dropping event for slow WebSocket client")
		}
	}
}

func (r *ClientRegistry) add(c *wsClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= maxClients {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *ClientRegistry) remove(c *wsClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// HandleWebSocket upgrades the request into a lifecycle event stream. Query
// parameters kind, projectId, pipelineId and status register an initial
// filter; further filters arrive as subscribe messages.
func HandleWebSocket(registry *ClientRegistry, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		initial := filterFromQuery(r.URL.Query())
		if err := initial.validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, fail(err.Error()))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
		if !initial.isZero() {
			client.filters = append(client.filters, initial)
		}
		if !registry.add(client) {
			getLog().Warn().Msg("WebSocket connection limit reached")
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
			conn.Close()
			return
		}
		getLog().Info().
			Str("remote", r.RemoteAddr).
			Str("project_id", initial.ProjectID).
			Str("pipeline_id", initial.PipelineID).
			Msg("WebSocket client connected")

		go client.writePump()
		client.readPump(registry)
	}
}

func (c *wsClient) readPump(registry *ClientRegistry) {
	defer func() {
		registry.remove(c)
		close(c.send)
		c.conn.Close()
		getLog().Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		reply := c.handle(message)
		if reply.Type == msgError {
			getLog().Warn().Str("reason", reply.Message).Msg("Rejected WebSocket message")
		}
		c.reply(reply)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
