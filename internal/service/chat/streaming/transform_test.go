package streaming

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lumina/internal/gateway"
)

// collectEvents returns an Emitter that appends to the given slice.
func collectEvents(events *[]Event) Emitter {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

// chunkChan feeds the given stream events through a closed channel.
func chunkChan(events ...gateway.StreamEvent) <-chan gateway.StreamEvent {
	ch := make(chan gateway.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func textChunk(content string) gateway.StreamEvent {
	return gateway.StreamEvent{Chunk: &gateway.StreamChunk{
		Choices: []gateway.StreamChoice{{Delta: gateway.StreamDelta{Content: content}}},
	}}
}

func toolChunk(index int, id, name, args string) gateway.StreamEvent {
	return gateway.StreamEvent{Chunk: &gateway.StreamChunk{
		Choices: []gateway.StreamChoice{{Delta: gateway.StreamDelta{
			ToolCalls: []gateway.ToolCall{{
				Index:    index,
				ID:       id,
				Type:     "function",
				Function: gateway.ToolCallFunction{Name: name, Arguments: args},
			}},
		}}},
	}}
}

func TestTransformer_PlainText(t *testing.T) {
	var events []Event
	tr := NewTransformer(collectEvents(&events))

	result, err := tr.Run(context.Background(), chunkChan(
		textChunk("Hello"),
		textChunk(" there"),
		textChunk("!"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Mode != ModeText {
		t.Errorf("mode = %q, want text", result.Mode)
	}
	if result.Content != "Hello there!" {
		t.Errorf("content = %q", result.Content)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("tool calls = %v, want none", result.ToolCalls)
	}

	if events[0].Type != EventStart || events[0].Mode != ModeText {
		t.Errorf("first event = %+v, want text start", events[0])
	}
	var concat strings.Builder
	for _, ev := range events[1:] {
		if ev.Type != EventDelta {
			t.Fatalf("unexpected event %+v", ev)
		}
		concat.WriteString(ev.Content)
	}
	if concat.String() != result.Content {
		t.Errorf("concatenated deltas %q != content %q", concat.String(), result.Content)
	}
}

func TestTransformer_CodeArtifactStream(t *testing.T) {
	var events []Event
	tr := NewTransformer(collectEvents(&events))

	result, err := tr.Run(context.Background(), chunkChan(
		toolChunk(0, "call_1", "update_code", ""),
		toolChunk(0, "", "", `{"language": "html", "code": "<html>`),
		toolChunk(0, "", "", `<body>\n`),
		toolChunk(0, "", "", `</body></html>", "label": "Timer"}`),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Mode != ModeCode {
		t.Errorf("mode = %q, want code", result.Mode)
	}
	want := "<html><body>\n</body></html>"
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
	if result.Language != "html" {
		t.Errorf("language = %q, want html", result.Language)
	}
	if result.Label != "Timer" {
		t.Errorf("label = %q, want Timer", result.Label)
	}
	if result.Recovered {
		t.Error("complete arguments must not be flagged recovered")
	}

	// Ordering invariant: one start, then deltas whose concatenation equals
	// the final content.
	if events[0].Type != EventStart || events[0].Mode != ModeCode {
		t.Fatalf("first event = %+v, want code start", events[0])
	}
	var concat strings.Builder
	for _, ev := range events[1:] {
		if ev.Type != EventDelta || ev.Mode != ModeCode {
			t.Fatalf("unexpected event %+v", ev)
		}
		concat.WriteString(ev.Content)
	}
	if concat.String() != result.Content {
		t.Errorf("concatenated deltas %q != final content %q", concat.String(), result.Content)
	}

	// The assembled call is available for dispatch.
	call := result.ArtifactToolCall()
	if call == nil || call.ID != "call_1" || call.Function.Name != "update_code" {
		t.Fatalf("artifact call = %+v", call)
	}
}

func TestTransformer_TruncatedArtifactRecovered(t *testing.T) {
	var events []Event
	tr := NewTransformer(collectEvents(&events))

	// Gateway dies mid-JSON-string.
	ch := make(chan gateway.StreamEvent, 3)
	ch <- toolChunk(0, "call_1", "update_canvas", `{"label": "Notes", "content": "# Plan\n`)
	ch <- toolChunk(0, "", "", `- first item`)
	ch <- gateway.StreamEvent{Err: errors.New("unexpected EOF")}
	close(ch)

	result, err := tr.Run(context.Background(), ch)
	if err == nil {
		t.Fatal("expected transport error")
	}

	if result.Content != "# Plan\n- first item" {
		t.Errorf("recovered content = %q", result.Content)
	}
	if !result.Recovered {
		t.Error("truncated artifact must be flagged recovered")
	}
	if result.Label != "Notes" {
		t.Errorf("label = %q, want Notes", result.Label)
	}

	// The longest recoverable content, not an empty string.
	var concat strings.Builder
	for _, ev := range events {
		if ev.Type == EventDelta {
			concat.WriteString(ev.Content)
		}
	}
	if concat.String() != result.Content {
		t.Errorf("delivered %q != recovered %q", concat.String(), result.Content)
	}
}

func TestTransformer_SearchToolCallAssembled(t *testing.T) {
	var events []Event
	tr := NewTransformer(collectEvents(&events))

	result, err := tr.Run(context.Background(), chunkChan(
		toolChunk(0, "call_9", "web_search", `{"query": `),
		toolChunk(0, "", "", `"golang generics"}`),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Non-artifact tool calls stream silently; no preview events.
	for _, ev := range events {
		if ev.Type == EventDelta {
			t.Errorf("unexpected delta for search tool: %+v", ev)
		}
	}

	if len(result.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(result.ToolCalls))
	}
	call := result.ToolCalls[0]
	if call.Function.Name != "web_search" {
		t.Errorf("name = %q", call.Function.Name)
	}
	if call.Function.Arguments != `{"query": "golang generics"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
	if result.ArtifactToolCall() != nil {
		t.Error("web_search must not be an artifact call")
	}
}

func TestTransformer_TerminalContentWinsOnDeltaLoss(t *testing.T) {
	var events []Event
	tr := NewTransformer(collectEvents(&events))

	full := "The complete answer that the terminal chunk repeats in full."
	result, err := tr.Run(context.Background(), chunkChan(
		textChunk("The complete answer"),
		// Terminal chunk carries the full content; the middle deltas were lost.
		gateway.StreamEvent{Chunk: &gateway.StreamChunk{
			Choices: []gateway.StreamChoice{{
				Delta:        gateway.StreamDelta{Content: full},
				FinishReason: "stop",
			}},
		}},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Content != full {
		t.Errorf("content = %q, want terminal value", result.Content)
	}
}
