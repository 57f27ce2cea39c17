package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"lumina/internal/config"
	"lumina/internal/domain"
	"lumina/internal/gateway"
	"lumina/internal/service/chat/streaming"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway scripts completion responses and records every call.
type fakeGateway struct {
	completions []*gateway.CompletionResponse
	streams     [][]gateway.StreamEvent
	calls       int
	streamCalls int
	gotRequests []*gateway.CompletionRequest
}

func (f *fakeGateway) CreateCompletion(ctx context.Context, req *gateway.CompletionRequest) (*gateway.CompletionResponse, error) {
	f.gotRequests = append(f.gotRequests, req)
	if f.calls >= len(f.completions) {
		return nil, errors.New("unexpected completion call")
	}
	resp := f.completions[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeGateway) StreamCompletion(ctx context.Context, req *gateway.CompletionRequest) (<-chan gateway.StreamEvent, error) {
	f.gotRequests = append(f.gotRequests, req)
	if f.streamCalls >= len(f.streams) {
		return nil, errors.New("unexpected stream call")
	}
	events := f.streams[f.streamCalls]
	f.streamCalls++

	ch := make(chan gateway.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func textResponse(content string) *gateway.CompletionResponse {
	return &gateway.CompletionResponse{
		Choices: []gateway.Choice{{Message: gateway.Message{Role: "assistant", Content: content}, FinishReason: "stop"}},
	}
}

func toolResponse(name, args string) *gateway.CompletionResponse {
	return &gateway.CompletionResponse{
		Choices: []gateway.Choice{{
			Message: gateway.Message{
				Role: "assistant",
				ToolCalls: []gateway.ToolCall{{
					ID:       "call_1",
					Type:     "function",
					Function: gateway.ToolCallFunction{Name: name, Arguments: args},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
}

func newTestService(gw Gateway) *Service {
	settings, _ := config.LoadPromptSettings("nonexistent.yaml")
	return NewService(gw, settings, nil, nil, nil, testLogger())
}

func userRequest(content string) *Request {
	return &Request{Messages: []IncomingMessage{{Role: "user", Content: content}}}
}

func TestCompleteRejectsOversizedRequestBeforeAnyCall(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw)

	messages := make([]IncomingMessage, config.MaxMessagesPerRequest+1)
	for i := range messages {
		messages[i] = IncomingMessage{Role: "user", Content: "hi"}
	}

	_, err := svc.Complete(context.Background(), "user-1", &Request{Messages: messages})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if gw.calls != 0 || gw.streamCalls != 0 {
		t.Errorf("gateway was called %d+%d times before validation", gw.calls, gw.streamCalls)
	}
}

func TestCompleteRejectsUnknownModel(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw)

	req := userRequest("hi")
	req.Model = "acme/totally-real-model"
	_, err := svc.Complete(context.Background(), "user-1", req)
	if !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("err = %v, want ErrInvalidModel", err)
	}
}

func TestCompleteToolFreePassthrough(t *testing.T) {
	gw := &fakeGateway{completions: []*gateway.CompletionResponse{textResponse("Hello there!")}}
	svc := newTestService(gw)

	resp, err := svc.Complete(context.Background(), "user-1", userRequest("Hello"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Hello there!" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(resp.ToolCallsUsed) != 0 {
		t.Errorf("ToolCallsUsed = %v, want empty", resp.ToolCallsUsed)
	}
	if gw.calls != 1 {
		t.Errorf("model called %d times, want 1", gw.calls)
	}
}

func TestCompleteArtifactShortCircuit(t *testing.T) {
	gw := &fakeGateway{completions: []*gateway.CompletionResponse{
		toolResponse("update_code", `{"code":"<html><body>timer</body></html>","language":"html","label":"Timer"}`),
	}}
	svc := newTestService(gw)

	req := userRequest("build a timer")
	req.ForceCode = true
	resp, err := svc.Complete(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Exactly one model call: the artifact payload is the final product.
	if gw.calls != 1 {
		t.Fatalf("model called %d times, want 1", gw.calls)
	}
	if resp.CodeUpdate == nil {
		t.Fatal("CodeUpdate missing")
	}
	if resp.CodeUpdate.Code != "<html><body>timer</body></html>" {
		t.Errorf("Code = %q", resp.CodeUpdate.Code)
	}
	if resp.CodeUpdate.Language != "html" {
		t.Errorf("Language = %q", resp.CodeUpdate.Language)
	}
	if resp.Content == "" {
		t.Error("local acknowledgment missing")
	}
	if len(resp.ToolCallsUsed) != 1 || resp.ToolCallsUsed[0] != "update_code" {
		t.Errorf("ToolCallsUsed = %v", resp.ToolCallsUsed)
	}
}

func TestCompleteForcedCodeUsesFocusedPrompt(t *testing.T) {
	gw := &fakeGateway{completions: []*gateway.CompletionResponse{
		toolResponse("update_code", `{"code":"done()","language":"python"}`),
	}}
	svc := newTestService(gw)

	req := userRequest("build a timer")
	req.ForceCode = true
	if _, err := svc.Complete(context.Background(), "user-1", req); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	system := gw.gotRequests[0].Messages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %q", system.Role)
	}
	// Forced mode replaces the assembled prompt instead of appending to it.
	if strings.Contains(system.Content, "helpful, concise assistant") {
		t.Errorf("focused prompt should not contain the base prompt: %q", system.Content)
	}
	if choice, ok := gw.gotRequests[0].ToolChoice.(gateway.ToolChoice); !ok || choice.Function.Name != "update_code" {
		t.Errorf("ToolChoice = %v, want forced update_code", gw.gotRequests[0].ToolChoice)
	}
}

func TestCompleteArtifactContinuation(t *testing.T) {
	gw := &fakeGateway{completions: []*gateway.CompletionResponse{
		toolResponse("update_code", `{"code":"<html><body>","language":"html"}`),
		textResponse("</body></html>"),
	}}
	svc := newTestService(gw)

	resp, err := svc.Complete(context.Background(), "user-1", userRequest("build a page"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.CodeUpdate == nil {
		t.Fatal("CodeUpdate missing")
	}
	if resp.CodeUpdate.Code != "<html><body></body></html>" {
		t.Errorf("Code = %q", resp.CodeUpdate.Code)
	}
	if !resp.WasContinued {
		t.Error("WasContinued should be set")
	}
	if gw.calls != 2 {
		t.Errorf("model called %d times, want 2 (initial + one continuation)", gw.calls)
	}
}

func TestCompleteToolFailureDegradesGracefully(t *testing.T) {
	gw := &fakeGateway{completions: []*gateway.CompletionResponse{
		toolResponse("web_search", `{"query":"weather"}`),
		textResponse("I could not check the weather, sorry."),
	}}
	// No search client registered, so web_search is an unknown tool.
	svc := newTestService(gw)

	resp, err := svc.Complete(context.Background(), "user-1", userRequest("what's the weather"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "I could not check the weather, sorry." {
		t.Errorf("Content = %q", resp.Content)
	}

	// The failure was appended as a tool result, not raised.
	followUp := gw.gotRequests[1]
	last := followUp.Messages[len(followUp.Messages)-1]
	if last.Role != "tool" || !strings.Contains(last.Content, "failed") {
		t.Errorf("tool failure not degraded into a tool message: %+v", last)
	}
}

func collectStream(t *testing.T, svc *Service, req *Request) ([]streaming.Event, error) {
	t.Helper()
	var events []streaming.Event
	err := svc.Stream(context.Background(), "user-1", req, func(ev streaming.Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func textChunk(content, finish string) gateway.StreamEvent {
	return gateway.StreamEvent{Chunk: &gateway.StreamChunk{
		Choices: []gateway.StreamChoice{{Delta: gateway.StreamDelta{Content: content}, FinishReason: finish}},
	}}
}

func toolChunk(index int, id, name, args string) gateway.StreamEvent {
	return gateway.StreamEvent{Chunk: &gateway.StreamChunk{
		Choices: []gateway.StreamChoice{{Delta: gateway.StreamDelta{
			ToolCalls: []gateway.ToolCall{{Index: index, ID: id, Function: gateway.ToolCallFunction{Name: name, Arguments: args}}},
		}}},
	}}
}

func TestStreamPlainText(t *testing.T) {
	gw := &fakeGateway{streams: [][]gateway.StreamEvent{{
		textChunk("Hel", ""),
		textChunk("lo!", "stop"),
	}}}
	svc := newTestService(gw)

	events, err := collectStream(t, svc, userRequest("Hello"))
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if events[0].Type != streaming.EventStart {
		t.Fatalf("first event = %v, want start", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != streaming.EventDone || last.Content != "Hello!" {
		t.Errorf("done = %+v", last)
	}

	var assembled strings.Builder
	for _, ev := range events {
		if ev.Type == streaming.EventDelta {
			assembled.WriteString(ev.Content)
		}
	}
	if assembled.String() != last.Content {
		t.Errorf("deltas %q != done content %q", assembled.String(), last.Content)
	}
}

func TestStreamArtifactSingleEnvelope(t *testing.T) {
	gw := &fakeGateway{streams: [][]gateway.StreamEvent{{
		toolChunk(0, "call_1", "update_code", `{"language":"html","code":"`),
		toolChunk(0, "", "", `<html>hi</html>`),
		toolChunk(0, "", "", `","label":"Page"}`),
	}}}
	svc := newTestService(gw)

	req := userRequest("build a page")
	req.ForceCode = true
	events, err := collectStream(t, svc, req)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	starts := 0
	var assembled strings.Builder
	for _, ev := range events {
		switch ev.Type {
		case streaming.EventStart:
			starts++
			if ev.Mode != streaming.ModeCode {
				t.Errorf("start mode = %v, want code", ev.Mode)
			}
		case streaming.EventDelta:
			assembled.WriteString(ev.Content)
		}
	}
	if starts != 1 {
		t.Errorf("start events = %d, want 1", starts)
	}

	done := events[len(events)-1]
	if done.Type != streaming.EventDone {
		t.Fatalf("last event = %v, want done", done.Type)
	}
	if done.Content != "<html>hi</html>" || done.Language != "html" || done.Label != "Page" {
		t.Errorf("done = %+v", done)
	}
	if assembled.String() != done.Content {
		t.Errorf("deltas %q != done content %q", assembled.String(), done.Content)
	}
	if gw.streamCalls != 1 {
		t.Errorf("model streamed %d times, want 1", gw.streamCalls)
	}
}

func TestStreamTruncatedArtifactContinues(t *testing.T) {
	gw := &fakeGateway{streams: [][]gateway.StreamEvent{
		{
			toolChunk(0, "call_1", "update_code", `{"language":"html","code":"<html><body>`),
			{Err: domain.ErrStreamTransport},
		},
		{
			textChunk("</body></html>", "stop"),
		},
	}}
	svc := newTestService(gw)

	req := userRequest("build a page")
	req.ForceCode = true
	events, err := collectStream(t, svc, req)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	done := events[len(events)-1]
	if done.Type != streaming.EventDone {
		t.Fatalf("last event = %v, want done", done.Type)
	}
	if done.Content != "<html><body></body></html>" {
		t.Errorf("done content = %q", done.Content)
	}
	if !done.WasContinued {
		t.Error("WasContinued should be set")
	}
	if !done.Recovered {
		t.Error("Recovered should be set after partial-JSON recovery")
	}

	var assembled strings.Builder
	for _, ev := range events {
		if ev.Type == streaming.EventDelta {
			assembled.WriteString(ev.Content)
		}
	}
	if assembled.String() != done.Content {
		t.Errorf("deltas %q != done content %q", assembled.String(), done.Content)
	}
}
