package voice

import "encoding/json"

// Upstream realtime event type tags. Dispatch is by exact tag match; unknown
// tags are relayed to the client untouched so protocol additions degrade
// gracefully.
const (
	typeSessionCreated   = "session.created"
	typeSessionUpdate    = "session.update"
	typeSpeechStarted    = "input_audio_buffer.speech_started"
	typeSpeechStopped    = "input_audio_buffer.speech_stopped"
	typeUserTranscript   = "conversation.item.input_audio_transcription.completed"
	typeAssistantDelta   = "response.audio_transcript.delta"
	typeAudioDelta       = "response.audio.delta"
	typeResponseDone     = "response.done"
	typeFunctionCallDone = "response.function_call_arguments.done"
	typeItemCreate       = "conversation.item.create"
	typeResponseCreate   = "response.create"
	typeUpstreamError    = "error"
)

// realtimeEvent is the envelope shared by all upstream events. Only the
// fields the bridge dispatches on are decoded; the raw payload is kept for
// relay.
type realtimeEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sessionConfig is sent once on open: voice identity, audio codec, and
// server-side voice activity detection thresholds.
type sessionConfig struct {
	Type    string         `json:"type"`
	Session sessionDetails `json:"session"`
}

type sessionDetails struct {
	Voice                   string          `json:"voice"`
	Modalities              []string        `json:"modalities"`
	InputAudioFormat        string          `json:"input_audio_format"`
	OutputAudioFormat       string          `json:"output_audio_format"`
	InputAudioTranscription json.RawMessage `json:"input_audio_transcription"`
	TurnDetection           turnDetection   `json:"turn_detection"`
	Tools                   []realtimeTool  `json:"tools,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// realtimeTool is the realtime API's flat function schema (no nested
// "function" object, unlike chat completions).
type realtimeTool struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters"`
}

// functionOutput returns a conversation.item.create event carrying a tool
// result, followed by the response.create that resumes generation.
func functionOutput(callID, output string) ([]byte, []byte) {
	item, _ := json.Marshal(map[string]interface{}{
		"type": typeItemCreate,
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
	resume, _ := json.Marshal(map[string]string{"type": typeResponseCreate})
	return item, resume
}

// clientEvent is the bridge's own protocol to the browser: state changes,
// finalized transcripts, and decoded audio frame notifications. Audio bytes
// travel as separate binary websocket frames.
type clientEvent struct {
	Type       string `json:"type"`
	State      string `json:"state,omitempty"`
	Role       string `json:"role,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}
