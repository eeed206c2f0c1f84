// ABOUTME: Tests for the live protocol WebSocket client
// ABOUTME: Runs the client against an httptest WebSocket server
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harperreed/salescoach/pkg/audio"
)

func newTestServer(t *testing.T, handler func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
}

// acceptSetup reads the setup message and answers setupComplete
func acceptSetup(t *testing.T, conn *websocket.Conn) *Setup {
	var msg ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("read setup: %v", err)
		return nil
	}
	if msg.Setup == nil {
		t.Errorf("first message was not setup")
		return nil
	}
	if err := conn.WriteJSON(ServerMessage{SetupComplete: &struct{}{}}); err != nil {
		t.Errorf("write setupComplete: %v", err)
	}
	return msg.Setup
}

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:         endpoint,
		APIKey:           "secret",
		Setup:            Setup{Model: "models/live-test"},
		HandshakeTimeout: 2 * time.Second,
		Logger:           zerolog.Nop(),
	})
}

func TestConnectAndSendAudio(t *testing.T) {
	type result struct {
		key   string
		model string
		msg   ClientMessage
	}
	results := make(chan result, 1)

	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		setup := acceptSetup(t, conn)
		if setup == nil {
			return
		}
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read realtime input: %v", err)
			return
		}
		results <- result{key: r.URL.Query().Get("key"), model: setup.Model, msg: msg}
		conn.ReadMessage() // wait for close
	})

	client := newTestClient(endpoint)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected connected after handshake")
	}

	payload := audio.Payload{Data: "AAEC", MimeType: audio.PCMMimeType(16000)}
	if err := client.SendAudio(payload); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case res := <-results:
		if res.key != "secret" {
			t.Errorf("key = %q, want secret", res.key)
		}
		if res.model != "models/live-test" {
			t.Errorf("model = %q", res.model)
		}
		if res.msg.RealtimeInput == nil || len(res.msg.RealtimeInput.MediaChunks) != 1 {
			t.Fatalf("unexpected message %+v", res.msg)
		}
		if res.msg.RealtimeInput.MediaChunks[0] != payload {
			t.Errorf("chunk = %+v, want %+v", res.msg.RealtimeInput.MediaChunks[0], payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive realtime input")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("expected disconnected after Close")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := client.SendAudio(payload); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAudio after Close = %v, want ErrNotConnected", err)
	}
}

func TestSendBeforeConnect(t *testing.T) {
	client := newTestClient("ws://127.0.0.1:1/live")
	err := client.SendAudio(audio.Payload{})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close before Connect failed: %v", err)
	}
}

func TestSendQueueFull(t *testing.T) {
	client := NewClient(Config{SendQueueSize: 1, Logger: zerolog.Nop()})
	// no writer goroutine drains the queue
	client.connected = true

	if err := client.SendAudio(audio.Payload{Data: "a"}); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := client.SendAudio(audio.Payload{Data: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second send = %v, want ErrQueueFull", err)
	}
}

func TestConnectInvalidEndpoint(t *testing.T) {
	tests := []string{"http://example.com/live", "::bad"}
	for _, endpoint := range tests {
		t.Run(endpoint, func(t *testing.T) {
			client := newTestClient(endpoint)
			if err := client.Connect(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHandshakeRejectsUnexpectedMessage(t *testing.T) {
	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		var msg ClientMessage
		conn.ReadJSON(&msg)
		conn.WriteJSON(ServerMessage{GoAway: &GoAway{TimeLeft: "1s"}})
		conn.ReadMessage()
	})

	client := newTestClient(endpoint)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake error")
	}
	if client.IsConnected() {
		t.Error("expected not connected")
	}
}

func TestHandshakeTimeout(t *testing.T) {
	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.ReadMessage()
		conn.ReadMessage()
	})

	client := NewClient(Config{
		Endpoint:         endpoint,
		HandshakeTimeout: 50 * time.Millisecond,
		Logger:           zerolog.Nop(),
	})

	start := time.Now()
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("handshake did not time out promptly")
	}
}

func TestRouting(t *testing.T) {
	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		if acceptSetup(t, conn) == nil {
			return
		}
		conn.WriteJSON(ServerMessage{ServerContent: &ServerContent{
			InputTranscription: &Transcription{Text: "what does it cost"},
		}})
		conn.WriteJSON(ServerMessage{ServerContent: &ServerContent{
			ModelTurn: &Content{Parts: []Part{
				{InlineData: &audio.Payload{Data: "AAA=", MimeType: "audio/pcm;rate=24000"}},
				{InlineData: &audio.Payload{Data: "AAA=", MimeType: "image/png"}},
				{Text: "Mention the annual plan"},
			}},
			OutputTranscription: &Transcription{Text: "mention the annual plan"},
		}})

		// binary frames carry JSON too
		data, _ := json.Marshal(ServerMessage{ServerContent: &ServerContent{TurnComplete: true}})
		conn.WriteMessage(websocket.BinaryMessage, data)

		conn.WriteJSON(ServerMessage{ToolCall: &ToolCall{FunctionCalls: []FunctionCall{
			{ID: "call-1", Name: "suggest", Args: map[string]any{"text": "offer a pilot"}},
		}}})
		conn.WriteJSON(ServerMessage{GoAway: &GoAway{TimeLeft: "30s"}})
		conn.ReadMessage()
	})

	client := newTestClient(endpoint)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	items := collect(t, client, 7)

	wantKinds := []InboundKind{
		InboundTranscript, InboundTranscript, InboundAudio, InboundText,
		InboundEvent, InboundToolCall, InboundEvent,
	}
	for i, want := range wantKinds {
		if items[i].Kind != want {
			t.Fatalf("item %d kind = %s, want %s (items: %+v)", i, items[i].Kind, want, items)
		}
	}

	if tr := items[0].Transcript; tr.Source != TranscriptInput || tr.Text != "what does it cost" {
		t.Errorf("transcript = %+v", tr)
	}
	if tr := items[1].Transcript; tr.Source != TranscriptOutput {
		t.Errorf("transcript source = %s, want output", tr.Source)
	}
	if p := items[2].Audio; p.MimeType != "audio/pcm;rate=24000" {
		t.Errorf("audio mime = %s", p.MimeType)
	}
	if client.Stale(items[2]) {
		t.Error("audio marked stale without an interruption")
	}
	if items[3].Text != "Mention the annual plan" {
		t.Errorf("text = %q", items[3].Text)
	}
	if items[4].Event.Type != EventTurnComplete {
		t.Errorf("event = %s, want turn_complete", items[4].Event.Type)
	}
	if call := items[5].ToolCall; call.ID != "call-1" || call.Name != "suggest" {
		t.Errorf("call = %+v", call)
	}
	if ev := items[6].Event; ev.Type != EventGoAway || ev.TimeLeft != "30s" {
		t.Errorf("event = %+v, want go_away 30s", ev)
	}

	// the image part is not routed
	if n := len(client.Inbound); n != 0 {
		t.Errorf("unexpected extra items: %d", n)
	}
}

// collect reads n inbound items in arrival order
func collect(t *testing.T, client *Client, n int) []Inbound {
	t.Helper()
	timeout := time.After(2 * time.Second)
	items := make([]Inbound, 0, n)
	for len(items) < n {
		select {
		case item := <-client.Inbound:
			items = append(items, item)
		case <-timeout:
			t.Fatalf("received %d of %d items: %+v", len(items), n, items)
		}
	}
	return items
}

func TestInterruptedMarksQueuedAudioStale(t *testing.T) {
	chunk := func() ServerMessage {
		return ServerMessage{ServerContent: &ServerContent{
			ModelTurn: &Content{Parts: []Part{
				{InlineData: &audio.Payload{Data: "AAA=", MimeType: "audio/pcm;rate=24000"}},
			}},
		}}
	}

	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		if acceptSetup(t, conn) == nil {
			return
		}
		for i := 0; i < 3; i++ {
			conn.WriteJSON(chunk())
		}
		conn.WriteJSON(ServerMessage{ServerContent: &ServerContent{Interrupted: true}})
		conn.WriteJSON(chunk())
		conn.ReadMessage()
	})

	client := newTestClient(endpoint)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	items := collect(t, client, 5)

	for i := 0; i < 3; i++ {
		if items[i].Kind != InboundAudio || !client.Stale(items[i]) {
			t.Errorf("item %d = %s stale=%v, want stale audio", i, items[i].Kind, client.Stale(items[i]))
		}
	}
	if items[3].Kind != InboundEvent || items[3].Event.Type != EventInterrupted {
		t.Fatalf("item 3 = %+v, want interrupted", items[3])
	}
	if items[4].Kind != InboundAudio || client.Stale(items[4]) {
		t.Errorf("audio after the interruption is stale=%v, want fresh", client.Stale(items[4]))
	}
}

func TestServerDisconnectReported(t *testing.T) {
	endpoint := newTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		acceptSetup(t, conn)
		// handler returns and the connection closes
	})

	client := newTestClient(endpoint)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	item := collect(t, client, 1)[0]
	if item.Kind != InboundEvent || item.Event.Type != EventDisconnected || item.Event.Err == nil {
		t.Errorf("item = %+v, want disconnected with error", item)
	}

	if client.IsConnected() {
		t.Error("expected disconnected")
	}
	if err := client.SendAudio(audio.Payload{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAudio = %v, want ErrNotConnected", err)
	}
}
