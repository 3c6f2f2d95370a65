// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/protocol"
)

func pipelineEvent(projectID, pipelineID string) protocol.PipelineLifecycleEvent {
	return protocol.NewPipelineEvent(protocol.PipelineCreated, &models.Pipeline{
		ProjectID:  projectID,
		PipelineID: pipelineID,
		Status:     models.PipelineStatusCreating,
	}, 1700000000000)
}

func TestChannelPublisher_DropsWhenFull(t *testing.T) {
	p := NewChannelPublisher(1)

	p.Publish(pipelineEvent("p1", "a"))
	p.Publish(pipelineEvent("p1", "b"))

	require.Len(t, p.Events(), 1)
	got := (<-p.Events()).(protocol.PipelineLifecycleEvent)
	assert.Equal(t, "a", got.PipelineID)
}

func TestClientFilters(t *testing.T) {
	event := pipelineEvent("p1", "a")
	project := protocol.NewProjectEvent(protocol.ProjectCreated, "p1", "demo", "dev", 1)

	tests := []struct {
		name    string
		filters []SubscriptionFilter
		event   protocol.Event
		want    bool
	}{
		{"no filters", nil, event, true},
		{"project match", []SubscriptionFilter{{ProjectID: "p1"}}, event, true},
		{"project mismatch", []SubscriptionFilter{{ProjectID: "p2"}}, event, false},
		{"pipeline match", []SubscriptionFilter{{ProjectID: "p1", PipelineID: "a"}}, event, true},
		{"pipeline mismatch", []SubscriptionFilter{{PipelineID: "b"}}, event, false},
		{"any of", []SubscriptionFilter{{PipelineID: "b"}, {ProjectID: "p1"}}, event, true},
		{"status match", []SubscriptionFilter{{Status: "Creating"}}, event, true},
		{"status mismatch", []SubscriptionFilter{{Status: "Failed"}}, event, false},
		{"kind pipeline", []SubscriptionFilter{{Kind: "pipeline"}}, event, true},
		{"kind excludes", []SubscriptionFilter{{Kind: "project"}}, event, false},
		{"project event has no pipeline", []SubscriptionFilter{{PipelineID: "a"}}, project, false},
		{"project event by project", []SubscriptionFilter{{ProjectID: "p1"}}, project, true},
		{"project event by kind", []SubscriptionFilter{{Kind: "project", ProjectID: "p1"}}, project, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &wsClient{filters: tt.filters}
			assert.Equal(t, tt.want, c.matchesAny(tt.event))
		})
	}
}

func TestRemoveFilter(t *testing.T) {
	filters := []SubscriptionFilter{{ProjectID: "p1"}, {ProjectID: "p1", PipelineID: "a"}, {ProjectID: "p1"}}

	got := removeFilter(filters, SubscriptionFilter{ProjectID: "p1"})

	assert.Equal(t, []SubscriptionFilter{{ProjectID: "p1", PipelineID: "a"}}, got)
}

func TestClientHandle(t *testing.T) {
	c := &wsClient{}

	reply := c.handle([]byte(`{"type":"subscribe","filters":{"projectId":"p1","status":"Failed"}}`))
	assert.Equal(t, "subscribed", reply.Type)
	assert.Equal(t, []SubscriptionFilter{{ProjectID: "p1", Status: "Failed"}}, reply.Filters)

	reply = c.handle([]byte(`{"type":"unsubscribe","filters":{"projectId":"p1","status":"Failed"}}`))
	assert.Equal(t, "unsubscribed", reply.Type)
	assert.Empty(t, c.filters)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `{`, "message is not valid JSON"},
		{"unknown type", `{"type":"replay"}`, `unknown message type "replay"`},
		{"unknown kind", `{"type":"subscribe","filters":{"kind":"task"}}`, `unknown event kind "task"`},
		{"unknown status", `{"type":"subscribe","filters":{"status":"Paused"}}`, `unknown pipeline status "Paused"`},
		{"project with status", `{"type":"subscribe","filters":{"kind":"project","status":"Active"}}`, "project events carry no pipeline id or status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := c.handle([]byte(tt.raw))
			assert.Equal(t, "error", reply.Type)
			assert.Equal(t, tt.want, reply.Message)
		})
	}
}

func TestClientHandle_FilterLimit(t *testing.T) {
	c := &wsClient{filters: make([]SubscriptionFilter, maxFilters)}

	reply := c.handle([]byte(`{"type":"subscribe","filters":{"projectId":"p1"}}`))

	assert.Equal(t, "error", reply.Type)
	assert.Len(t, c.filters, maxFilters)
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + query
}

func readOut(t *testing.T, conn *websocket.Conn) wsOutMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsOutMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocket_RejectsInvalidQueryFilter(t *testing.T) {
	srv := httptest.NewServer(HandleWebSocket(NewClientRegistry(), nil))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?status=Paused"), nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebSocket_QueryFilterAndSubscribe(t *testing.T) {
	registry := NewClientRegistry()
	srv := httptest.NewServer(HandleWebSocket(registry, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?projectId=p1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	registry.Broadcast(pipelineEvent("p2", "b"))
	registry.Broadcast(pipelineEvent("p1", "a"))
	msg := readOut(t, conn)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "pipeline", msg.EventType)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", Filters: SubscriptionFilter{ProjectID: "p2"}}))
	msg = readOut(t, conn)
	assert.Equal(t, "subscribed", msg.Type)
	assert.Equal(t, []SubscriptionFilter{{ProjectID: "p1"}, {ProjectID: "p2"}}, msg.Filters)
}

func TestWebSocket_ReceivesBroadcast(t *testing.T) {
	registry := NewClientRegistry()
	publisher := NewChannelPublisher(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewEventBroadcaster(publisher.Events(), registry).Run(ctx)

	srv := httptest.NewServer(HandleWebSocket(registry, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	publisher.Publish(pipelineEvent("p1", "a"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type      string                          `json:"type"`
		EventType string                          `json:"eventType"`
		Payload   protocol.PipelineLifecycleEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "pipeline", msg.EventType)
	assert.Equal(t, "a", msg.Payload.PipelineID)
}
