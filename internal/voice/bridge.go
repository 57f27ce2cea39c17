package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lumina/internal/config"
	"lumina/internal/domain/models"
	"lumina/internal/gateway"
	"lumina/internal/service/tools"
)

// State is the bridge lifecycle. Open is split into the three audible
// sub-states the client renders.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateSpeaking   State = "speaking"
	StateClosed     State = "closed"
)

// SessionSaver persists buffered voice turns at save points.
type SessionSaver interface {
	AppendMessages(ctx context.Context, sessionID, userID string, messages []models.ChatMessage) (*models.ChatSession, error)
}

// UpstreamConfig points the bridge at the realtime voice provider.
type UpstreamConfig struct {
	URL    string
	Voice  string
	APIKey string
}

// wsFrame is one websocket message read off either socket.
type wsFrame struct {
	messageType int
	data        []byte
	err         error
}

// Bridge relays one client websocket to one upstream realtime voice socket.
// A single event-loop goroutine owns all socket writes, the state machine,
// and the turn buffer; the two reader goroutines only feed it. That
// serializes save points without a mutex.
type Bridge struct {
	client   *websocket.Conn
	upstream *websocket.Conn

	cfg      UpstreamConfig
	registry *tools.Registry
	defs     []gateway.Tool
	saver    SessionSaver
	logger   *slog.Logger

	userID    string
	sessionID string

	state     State
	active    atomic.Bool
	buffer    *TurnBuffer
	assistant strings.Builder
}

// NewBridge wraps an accepted client connection. Run does the upstream dial.
func NewBridge(client *websocket.Conn, cfg UpstreamConfig, registry *tools.Registry, defs []gateway.Tool, saver SessionSaver, userID, sessionID string, logger *slog.Logger) *Bridge {
	return &Bridge{
		client:    client,
		cfg:       cfg,
		registry:  registry,
		defs:      defs,
		saver:     saver,
		logger:    logger,
		userID:    userID,
		sessionID: sessionID,
		state:     StateIdle,
		buffer:    NewTurnBuffer(),
	}
}

// State returns the bridge's current lifecycle state.
func (b *Bridge) State() State { return b.state }

// Active reports whether the session accepts new work. Tool executions check
// this before running and after finishing.
func (b *Bridge) Active() bool { return b.active.Load() }

// Run drives the session until either socket closes or ctx is cancelled.
// Buffered turns are flushed on every exit path.
func (b *Bridge) Run(ctx context.Context) error {
	b.state = StateConnecting

	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	upstream, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		b.state = StateClosed
		return fmt.Errorf("dial realtime upstream: %w", err)
	}
	b.upstream = upstream
	defer func() { _ = upstream.Close() }()

	if err := b.configureSession(); err != nil {
		b.state = StateClosed
		return err
	}

	b.active.Store(true)
	b.setState(StateListening)

	clientCh := readLoop(b.client)
	upstreamCh := readLoop(upstream)

	ticker := time.NewTicker(config.VoiceAutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Deactivate(context.Background())
			return ctx.Err()

		case <-ticker.C:
			b.flush(ctx)

		case frame, ok := <-clientCh:
			if !ok || frame.err != nil {
				b.Deactivate(context.Background())
				return nil
			}
			if err := b.handleClientFrame(frame); err != nil {
				b.logger.Warn("client frame dropped", "error", err)
			}

		case frame, ok := <-upstreamCh:
			if !ok || frame.err != nil {
				b.sendClientEvent(clientEvent{Type: "error", Error: "voice connection lost"})
				b.Deactivate(context.Background())
				return frame.err
			}
			if frame.messageType == websocket.TextMessage {
				b.handleUpstreamEvent(ctx, frame.data)
			}
		}
	}
}

// Deactivate ends the session: no further tool results are accepted, pending
// turns are flushed, and both sockets close. Safe to call more than once.
func (b *Bridge) Deactivate(ctx context.Context) {
	if !b.active.Swap(false) && b.state == StateClosed {
		return
	}
	b.finalizeAssistantTurn()
	b.flush(ctx)
	b.state = StateClosed
	if b.upstream != nil {
		_ = b.upstream.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

// configureSession sends the one-time session.update establishing voice
// identity, audio codec, and server-side VAD thresholds.
func (b *Bridge) configureSession() error {
	rtTools := make([]realtimeTool, 0, len(b.defs))
	for _, def := range b.defs {
		rtTools = append(rtTools, realtimeTool{
			Type:        "function",
			Name:        def.Function.Name,
			Description: def.Function.Description,
			Parameters:  def.Function.Parameters,
		})
	}

	cfg := sessionConfig{
		Type: typeSessionUpdate,
		Session: sessionDetails{
			Voice:                   b.cfg.Voice,
			Modalities:              []string{"audio", "text"},
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: json.RawMessage(`{"model":"whisper-1"}`),
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMs:   300,
				SilenceDurationMs: 500,
			},
			Tools: rtTools,
		},
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}
	if err := b.upstream.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send session config: %w", err)
	}
	return nil
}

// handleClientFrame forwards client traffic upstream. Text frames are already
// realtime protocol events; binary frames are raw audio samples wrapped into
// an append event.
func (b *Bridge) handleClientFrame(frame wsFrame) error {
	switch frame.messageType {
	case websocket.TextMessage:
		return b.upstream.WriteMessage(websocket.TextMessage, frame.data)
	case websocket.BinaryMessage:
		payload, err := json.Marshal(map[string]string{
			"type":  "input_audio_buffer.append",
			"audio": base64.StdEncoding.EncodeToString(frame.data),
		})
		if err != nil {
			return err
		}
		return b.upstream.WriteMessage(websocket.TextMessage, payload)
	default:
		return nil
	}
}

// handleUpstreamEvent dispatches one upstream event by its type tag.
func (b *Bridge) handleUpstreamEvent(ctx context.Context, raw []byte) {
	var ev realtimeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		b.logger.Warn("unparseable upstream event", "error", err)
		return
	}

	switch ev.Type {
	case typeSessionCreated:
		b.relay(raw)

	case typeSpeechStarted:
		b.setState(StateListening)

	case typeSpeechStopped:
		b.setState(StateThinking)

	case typeUserTranscript:
		b.buffer.Append("user", ev.Transcript)
		b.sendClientEvent(clientEvent{Type: "transcript", Role: "user", Transcript: ev.Transcript})

	case typeAssistantDelta:
		b.assistant.WriteString(ev.Delta)
		if b.state != StateSpeaking {
			b.setState(StateSpeaking)
		}

	case typeAudioDelta:
		samples, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			b.logger.Warn("undecodable audio delta", "error", err)
			return
		}
		_ = b.client.WriteMessage(websocket.BinaryMessage, samples)

	case typeResponseDone:
		b.finalizeAssistantTurn()
		b.setState(StateListening)
		b.relay(raw)

	case typeFunctionCallDone:
		b.executeTool(ctx, ev)

	case typeUpstreamError:
		message := "voice provider error"
		if ev.Error != nil {
			message = ev.Error.Message
		}
		b.logger.Warn("upstream voice error", "message", message)
		b.sendClientEvent(clientEvent{Type: "error", Error: message})

	default:
		b.relay(raw)
	}
}

// executeTool runs one tool call requested over the socket. The liveness
// check runs before and after execution so a session deactivated mid-call
// returns a cancellation instead of resurrecting a closed session.
func (b *Bridge) executeTool(ctx context.Context, ev realtimeEvent) {
	if !b.Active() {
		b.sendFunctionOutput(ev.CallID, `{"cancelled":true,"reason":"session deactivated"}`)
		return
	}

	input := map[string]interface{}{}
	if ev.Arguments != "" {
		if err := json.Unmarshal([]byte(ev.Arguments), &input); err != nil {
			b.logger.Warn("unparseable tool arguments", "tool", ev.Name, "error", err)
		}
	}

	result := b.registry.Execute(ctx, tools.Call{ID: ev.CallID, Name: ev.Name, Input: input})

	if !b.Active() {
		// Deactivated while the tool ran; discard the result.
		return
	}

	var output string
	if result.IsError {
		output = fmt.Sprintf(`{"error":%q}`, result.Error.Error())
	} else {
		encoded, err := json.Marshal(result.Result)
		if err != nil {
			output = fmt.Sprintf(`{"error":%q}`, err.Error())
		} else {
			output = string(encoded)
		}
	}
	b.sendFunctionOutput(ev.CallID, output)
}

func (b *Bridge) sendFunctionOutput(callID, output string) {
	if b.upstream == nil {
		return
	}
	item, resume := functionOutput(callID, output)
	if err := b.upstream.WriteMessage(websocket.TextMessage, item); err != nil {
		b.logger.Warn("send function output failed", "error", err)
		return
	}
	_ = b.upstream.WriteMessage(websocket.TextMessage, resume)
}

// finalizeAssistantTurn flushes the accumulating assistant transcript into
// the turn buffer.
func (b *Bridge) finalizeAssistantTurn() {
	if b.assistant.Len() == 0 {
		return
	}
	b.buffer.Append("assistant", b.assistant.String())
	b.sendClientEvent(clientEvent{Type: "transcript", Role: "assistant", Transcript: b.assistant.String()})
	b.assistant.Reset()
}

// flush persists turns past the save pointer. Idempotent; runs on the event
// loop so concurrent triggers (ticker, deactivate, socket close) serialize.
func (b *Bridge) flush(ctx context.Context) {
	if b.saver == nil {
		return
	}
	pending := b.buffer.Unsaved()
	if len(pending) == 0 {
		return
	}

	session, err := b.saver.AppendMessages(ctx, b.sessionID, b.userID, pending)
	if err != nil {
		b.logger.Error("voice turn save failed", "error", err, "pending", len(pending))
		return
	}
	b.sessionID = session.ID
	b.buffer.MarkSaved(len(pending))
}

func (b *Bridge) setState(state State) {
	if b.state == state {
		return
	}
	b.state = state
	b.sendClientEvent(clientEvent{Type: "state", State: string(state)})
}

func (b *Bridge) sendClientEvent(ev clientEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = b.client.WriteMessage(websocket.TextMessage, payload)
}

// relay forwards an upstream text event to the client verbatim.
func (b *Bridge) relay(raw []byte) {
	_ = b.client.WriteMessage(websocket.TextMessage, raw)
}

// readLoop pumps one socket into a channel until it errors or closes.
func readLoop(conn *websocket.Conn) <-chan wsFrame {
	ch := make(chan wsFrame, 16)
	go func() {
		defer close(ch)
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					ch <- wsFrame{err: err}
				}
				return
			}
			ch <- wsFrame{messageType: messageType, data: data}
		}
	}()
	return ch
}
