package streaming

import (
	"context"
	"sort"
	"strings"

	"lumina/internal/config"
	"lumina/internal/gateway"
)

// Artifact tool names recognized for live extraction.
const (
	ToolUpdateCanvas = "update_canvas"
	ToolUpdateCode   = "update_code"
)

// Result is what one transformed stream produced: the final content, the
// artifact metadata if an artifact tool streamed, and any fully-assembled tool
// calls for the dispatch loop.
type Result struct {
	Mode     Mode
	Content  string
	Label    string
	Language string

	// Recovered is true when the final content came from partial-JSON
	// recovery rather than a clean parse of the tool arguments.
	Recovered bool

	// ToolCalls are all calls the model requested, assembled in model order.
	ToolCalls []gateway.ToolCall

	FinishReason string
}

// ArtifactToolCall returns the first update_canvas/update_code call, if any.
func (r *Result) ArtifactToolCall() *gateway.ToolCall {
	for i := range r.ToolCalls {
		name := r.ToolCalls[i].Function.Name
		if name == ToolUpdateCanvas || name == ToolUpdateCode {
			return &r.ToolCalls[i]
		}
	}
	return nil
}

// pendingCall accumulates one tool call's streamed fragments.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Transformer converts the gateway's chunk stream into the normalized
// start/delta*/done contract. Plain text streams through untouched; artifact
// tool arguments stream through the FieldExtractor so the client previews the
// artifact body live, long before the JSON document closes.
//
// Not safe for concurrent use; one Transformer serves one request.
type Transformer struct {
	emit      Emitter
	mode      Mode
	extractor *FieldExtractor
	text      strings.Builder
	started   bool

	calls        map[int]*pendingCall
	artifactIdx  int
	terminalText string
}

// NewTransformer creates a transformer that delivers events through emit.
func NewTransformer(emit Emitter) *Transformer {
	return &Transformer{
		emit:        emit,
		mode:        ModeText,
		calls:       make(map[int]*pendingCall),
		artifactIdx: -1,
	}
}

// Run consumes the chunk stream until it closes or errors and returns the
// transformed result. On a transport error the partial result is returned
// alongside the error: content already delivered to the client is retained,
// never discarded.
func (t *Transformer) Run(ctx context.Context, events <-chan gateway.StreamEvent) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return t.finalize(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return t.finalize(), nil
			}
			if ev.Err != nil {
				return t.finalize(), ev.Err
			}
			if err := t.processChunk(ev.Chunk); err != nil {
				return t.finalize(), err
			}
		}
	}
}

func (t *Transformer) processChunk(chunk *gateway.StreamChunk) error {
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	for _, tc := range choice.Delta.ToolCalls {
		if err := t.processToolCallDelta(tc); err != nil {
			return err
		}
	}

	if choice.Delta.Content != "" {
		if err := t.processTextDelta(choice.Delta.Content, choice.FinishReason != ""); err != nil {
			return err
		}
	}

	return nil
}

func (t *Transformer) processToolCallDelta(tc gateway.ToolCall) error {
	call, ok := t.calls[tc.Index]
	if !ok {
		call = &pendingCall{}
		t.calls[tc.Index] = call
	}
	if tc.ID != "" {
		call.id = tc.ID
	}
	if tc.Function.Name != "" {
		call.name = tc.Function.Name
	}

	// First sight of an artifact tool switches the stream's mode. The mode is
	// fixed for the rest of the stream: deltas now carry artifact body, not
	// prose.
	if t.artifactIdx == -1 && t.mode == ModeText {
		switch call.name {
		case ToolUpdateCanvas:
			t.artifactIdx = tc.Index
			t.mode = ModeCanvas
			t.extractor = NewFieldExtractor("content")
		case ToolUpdateCode:
			t.artifactIdx = tc.Index
			t.mode = ModeCode
			t.extractor = NewFieldExtractor("code")
		}
		if t.artifactIdx != -1 {
			if err := t.start(); err != nil {
				return err
			}
		}
	}

	fragment := tc.Function.Arguments
	if fragment == "" {
		return nil
	}
	call.args.WriteString(fragment)

	if tc.Index == t.artifactIdx {
		if delta := t.extractor.Append(fragment); delta != "" {
			return t.emit(Event{Type: EventDelta, Mode: t.mode, Content: delta})
		}
	}
	return nil
}

func (t *Transformer) processTextDelta(content string, terminal bool) error {
	if t.artifactIdx != -1 {
		// Artifact stream: any trailing prose from the model is not part of
		// the artifact body. A terminal full-content field is kept for the
		// delta-loss guard.
		if terminal {
			t.terminalText = content
		}
		return nil
	}

	if !t.started {
		if err := t.start(); err != nil {
			return err
		}
	}

	// Delta-loss guard: some gateways repeat the full content in the terminal
	// chunk. If it is longer than everything accumulated (beyond slack),
	// deltas were dropped in transport and the terminal value wins.
	if terminal && len(content) > t.text.Len()+config.ContentSlackThreshold {
		accumulated := t.text.String()
		if strings.HasPrefix(content, accumulated) {
			tail := content[len(accumulated):]
			t.text.WriteString(tail)
			return t.emit(Event{Type: EventDelta, Mode: t.mode, Content: tail})
		}
		t.text.Reset()
		t.text.WriteString(content)
		return nil
	}

	t.text.WriteString(content)
	return t.emit(Event{Type: EventDelta, Mode: t.mode, Content: content})
}

func (t *Transformer) start() error {
	t.started = true
	return t.emit(Event{Type: EventStart, Mode: t.mode})
}

// finalize assembles the Result after the stream ends (cleanly or not).
func (t *Transformer) finalize() *Result {
	result := &Result{
		Mode:      t.mode,
		ToolCalls: t.assembledCalls(),
	}

	if t.artifactIdx != -1 {
		content, clean := t.extractor.Final()
		result.Recovered = !clean

		// Keep the delta contract exact: whatever the final parse recovered
		// beyond the already-emitted extraction goes out as one last delta.
		emitted := t.extractor.Current()
		if len(content) > len(emitted) && strings.HasPrefix(content, emitted) {
			_ = t.emit(Event{Type: EventDelta, Mode: t.mode, Content: content[len(emitted):]})
		} else if !clean && len(content) < len(emitted) {
			content = emitted
		}

		result.Content = content
		result.Label = ExtractStringField(t.extractor.Buffer(), "label")
		if t.mode == ModeCode {
			result.Language = ExtractStringField(t.extractor.Buffer(), "language")
		}
		return result
	}

	result.Content = t.text.String()
	return result
}

// assembledCalls returns the pending calls in model order with their complete
// argument documents.
func (t *Transformer) assembledCalls() []gateway.ToolCall {
	if len(t.calls) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(t.calls))
	for i := range t.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]gateway.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		call := t.calls[i]
		out = append(out, gateway.ToolCall{
			Index: i,
			ID:    call.id,
			Type:  "function",
			Function: gateway.ToolCallFunction{
				Name:      call.name,
				Arguments: call.args.String(),
			},
		})
	}
	return out
}
