package voice

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lumina/internal/domain/models"
	"lumina/internal/service/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsPair dials a test websocket server and returns the client-side conn plus
// a channel of everything the server receives.
func wsPair(t *testing.T) (*websocket.Conn, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial test server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, received
}

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket message")
		return nil
	}
}

func TestTurnBufferSavePointer(t *testing.T) {
	buf := NewTurnBuffer()
	buf.Append("user", "hello")
	buf.Append("assistant", "hi there")
	buf.Append("user", "") // empty transcripts are dropped

	pending := buf.Unsaved()
	if len(pending) != 2 {
		t.Fatalf("Unsaved = %d turns, want 2", len(pending))
	}
	if pending[0].Kind != models.KindVoice || pending[0].Role != "user" || pending[0].Content != "hello" {
		t.Errorf("unexpected message: %+v", pending[0])
	}

	buf.MarkSaved(2)
	if got := buf.Unsaved(); got != nil {
		t.Errorf("Unsaved after MarkSaved = %v, want nil", got)
	}

	buf.Append("user", "one more")
	if got := buf.Unsaved(); len(got) != 1 || got[0].Content != "one more" {
		t.Errorf("Unsaved = %v, want the new turn only", got)
	}
}

// fakeSaver records save batches.
type fakeSaver struct {
	batches [][]models.ChatMessage
}

func (f *fakeSaver) AppendMessages(ctx context.Context, sessionID, userID string, messages []models.ChatMessage) (*models.ChatSession, error) {
	f.batches = append(f.batches, messages)
	if sessionID == "" {
		sessionID = "session-new"
	}
	return &models.ChatSession{ID: sessionID, UserID: userID}, nil
}

func TestFlushIsIdempotentAcrossTriggers(t *testing.T) {
	saver := &fakeSaver{}
	b := NewBridge(nil, UpstreamConfig{}, tools.NewRegistry(), nil, saver, "user-1", "", testLogger())

	b.buffer.Append("user", "first")
	b.buffer.Append("assistant", "second")

	// Two triggers firing back to back must not double-save.
	b.flush(context.Background())
	b.flush(context.Background())

	if len(saver.batches) != 1 {
		t.Fatalf("saved %d batches, want 1", len(saver.batches))
	}
	if len(saver.batches[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(saver.batches[0]))
	}
	if b.sessionID != "session-new" {
		t.Errorf("sessionID = %q, want adopted from first save", b.sessionID)
	}

	b.buffer.Append("user", "third")
	b.flush(context.Background())
	if len(saver.batches) != 2 || len(saver.batches[1]) != 1 {
		t.Errorf("second flush did not save exactly the new turn: %v", saver.batches)
	}
}

func TestExecuteToolShortCircuitsWhenDeactivated(t *testing.T) {
	upstream, received := wsPair(t)
	b := NewBridge(nil, UpstreamConfig{}, tools.NewRegistry(), nil, nil, "user-1", "", testLogger())
	b.upstream = upstream
	// active stays false: session was never activated (or already deactivated)

	b.executeTool(context.Background(), realtimeEvent{CallID: "call_1", Name: "web_search", Arguments: `{"query":"x"}`})

	item := recv(t, received)
	if !strings.Contains(string(item), `"cancelled":true`) {
		t.Errorf("expected cancellation output, got %s", item)
	}
	resume := recv(t, received)
	if !strings.Contains(string(resume), "response.create") {
		t.Errorf("expected response.create after output, got %s", resume)
	}
}

// stubExecutor returns a fixed result.
type stubExecutor struct {
	result interface{}
}

func (s *stubExecutor) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	return s.result, nil
}

func TestExecuteToolSendsResultAndResume(t *testing.T) {
	upstream, received := wsPair(t)
	registry := tools.NewRegistry()
	registry.Register("web_search", &stubExecutor{result: map[string]interface{}{"result_count": 1}})

	b := NewBridge(nil, UpstreamConfig{}, registry, nil, nil, "user-1", "", testLogger())
	b.upstream = upstream
	b.active.Store(true)

	b.executeTool(context.Background(), realtimeEvent{CallID: "call_1", Name: "web_search", Arguments: `{"query":"go"}`})

	item := recv(t, received)
	var parsed struct {
		Type string `json:"type"`
		Item struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		} `json:"item"`
	}
	if err := json.Unmarshal(item, &parsed); err != nil {
		t.Fatalf("unparseable item event: %v", err)
	}
	if parsed.Type != "conversation.item.create" || parsed.Item.CallID != "call_1" {
		t.Errorf("unexpected item event: %+v", parsed)
	}
	if !strings.Contains(parsed.Item.Output, "result_count") {
		t.Errorf("output missing tool result: %q", parsed.Item.Output)
	}

	resume := recv(t, received)
	if !strings.Contains(string(resume), "response.create") {
		t.Errorf("expected response.create, got %s", resume)
	}
}

func TestUpstreamEventStateMachine(t *testing.T) {
	client, clientReceived := wsPair(t)
	b := NewBridge(client, UpstreamConfig{}, tools.NewRegistry(), nil, nil, "user-1", "", testLogger())
	b.active.Store(true)
	b.state = StateListening

	// User stops speaking: thinking.
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"input_audio_buffer.speech_stopped"}`))
	if b.State() != StateThinking {
		t.Fatalf("state = %v, want thinking", b.State())
	}
	if ev := recv(t, clientReceived); !strings.Contains(string(ev), "thinking") {
		t.Errorf("client not told about state change: %s", ev)
	}

	// User transcript finalizes into a turn.
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"what time is it"}`))
	if b.buffer.Len() != 1 {
		t.Fatalf("buffer = %d turns, want 1", b.buffer.Len())
	}
	recv(t, clientReceived) // transcript event

	// Assistant deltas accumulate and switch to speaking.
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"response.audio_transcript.delta","delta":"It is "}`))
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"response.audio_transcript.delta","delta":"noon."}`))
	if b.State() != StateSpeaking {
		t.Fatalf("state = %v, want speaking", b.State())
	}
	recv(t, clientReceived) // state event

	// Response done finalizes the assistant turn and resets to listening.
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"response.done"}`))
	if b.State() != StateListening {
		t.Errorf("state = %v, want listening", b.State())
	}
	if b.buffer.Len() != 2 {
		t.Fatalf("buffer = %d turns, want 2", b.buffer.Len())
	}
	if got := b.buffer.Unsaved()[1].Content; got != "It is noon." {
		t.Errorf("assistant turn = %q", got)
	}
}

func TestAudioDeltaDecodedToBinary(t *testing.T) {
	client, clientReceived := wsPair(t)
	b := NewBridge(client, UpstreamConfig{}, tools.NewRegistry(), nil, nil, "user-1", "", testLogger())

	// "audio" base64-encoded
	b.handleUpstreamEvent(context.Background(), []byte(`{"type":"response.audio.delta","delta":"YXVkaW8="}`))

	if got := string(recv(t, clientReceived)); got != "audio" {
		t.Errorf("decoded audio = %q, want %q", got, "audio")
	}
}
