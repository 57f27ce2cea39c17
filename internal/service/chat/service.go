package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lumina/internal/config"
	"lumina/internal/domain"
	"lumina/internal/gateway"
	"lumina/internal/service/chat/streaming"
	"lumina/internal/service/continuation"
	"lumina/internal/service/tools"
	"lumina/internal/service/tools/external"
)

// Gateway abstracts the hosted model gateway for testing.
type Gateway interface {
	CreateCompletion(ctx context.Context, req *gateway.CompletionRequest) (*gateway.CompletionResponse, error)
	StreamCompletion(ctx context.Context, req *gateway.CompletionRequest) (<-chan gateway.StreamEvent, error)
}

// Response is the non-streaming chat result.
type Response struct {
	Content       string          `json:"content"`
	Model         string          `json:"model"`
	ToolCallsUsed []string        `json:"tool_calls_used"`
	WebSources    []WebSource     `json:"web_sources,omitempty"`
	CanvasUpdate  *ArtifactUpdate `json:"canvas_update,omitempty"`
	CodeUpdate    *ArtifactUpdate `json:"code_update,omitempty"`
	WasContinued  bool            `json:"wasContinued,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
}

// Service orchestrates one chat request: validation, prompt assembly, the
// model call, the tool dispatch loop, and artifact continuation.
type Service struct {
	gw           Gateway
	assembler    *Assembler
	searchClient external.SearchClient
	fileGen      external.FileGenerator
	searcher     tools.MessageSearcher
	toolConfig   *tools.Config
	logger       *slog.Logger
}

// NewService wires the chat service. searchClient, fileGen and searcher may be
// nil; the matching tools are then simply not advertised to the model.
func NewService(gw Gateway, settings *config.PromptSettings, searchClient external.SearchClient, fileGen external.FileGenerator, searcher tools.MessageSearcher, logger *slog.Logger) *Service {
	return &Service{
		gw:           gw,
		assembler:    NewAssembler(settings),
		searchClient: searchClient,
		fileGen:      fileGen,
		searcher:     searcher,
		toolConfig:   tools.DefaultConfig(),
		logger:       logger,
	}
}

// buildTools assembles the per-request registry and wire definitions.
func (s *Service) buildTools(userID string) (*tools.Registry, []gateway.Tool) {
	b := tools.NewBuilder(s.toolConfig).WithArtifacts()
	if s.searchClient != nil {
		b = b.WithWebSearch(s.searchClient)
	}
	if s.searcher != nil {
		b = b.WithPastChats(userID, s.searcher)
	}
	if s.fileGen != nil {
		b = b.WithFileGeneration(s.fileGen)
	}
	return b.Build()
}

// buildMessages converts the validated request into gateway messages with the
// assembled system instruction first.
func (s *Service) buildMessages(req *Request) []gateway.Message {
	msgs := make([]gateway.Message, 0, len(req.Messages)+1)
	if system := s.assembler.Assemble(req); system != "" {
		msgs = append(msgs, gateway.Message{Role: "system", Content: system})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, gateway.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// toolChoice forces the matching tool when the client forced a mode.
func toolChoice(req *Request) interface{} {
	switch {
	case req.ForceCanvas:
		return gateway.ToolChoice{Type: "function", Function: gateway.ToolChoiceFunction{Name: tools.NameUpdateCanvas}}
	case req.ForceCode:
		return gateway.ToolChoice{Type: "function", Function: gateway.ToolChoiceFunction{Name: tools.NameUpdateCode}}
	case req.ForceWebSearch:
		return gateway.ToolChoice{Type: "function", Function: gateway.ToolChoiceFunction{Name: tools.NameWebSearch}}
	default:
		return nil
	}
}

// Complete handles a non-streaming chat request.
func (s *Service) Complete(ctx context.Context, userID string, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	registry, defs := s.buildTools(userID)
	model := req.ResolvedModel()
	messages := s.buildMessages(req)

	first, err := s.gw.CreateCompletion(ctx, &gateway.CompletionRequest{
		Model:      model,
		Messages:   messages,
		Tools:      defs,
		ToolChoice: toolChoice(req),
	})
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Model:         model,
		ToolCallsUsed: []string{},
		SessionID:     req.SessionID,
	}

	assistantMsg := first.Choices[0].Message
	if len(assistantMsg.ToolCalls) == 0 {
		// No tools requested: the model's own content is the final answer.
		resp.Content = assistantMsg.Content
		return resp, nil
	}

	dispatcher := NewDispatcher(registry, s.logger)
	outcome, err := dispatcher.Dispatch(ctx, assistantMsg)
	if err != nil {
		return nil, err
	}
	resp.ToolCallsUsed = outcome.ToolCallsUsed
	resp.WebSources = outcome.WebSources

	if outcome.Artifact != nil {
		// Artifact short-circuit: the tool payload is the final product; a
		// second model call would only restate it.
		s.applyArtifact(ctx, model, req, outcome.Artifact, resp)
		return resp, nil
	}

	if !outcome.NeedsFollowUp {
		resp.Content = assistantMsg.Content
		return resp, nil
	}

	// Search-type tools ran: a second call with no tools forces a prose
	// synthesis of the results.
	followUp, err := s.gw.CreateCompletion(ctx, &gateway.CompletionRequest{
		Model:    model,
		Messages: append(messages, outcome.ToolMessages...),
	})
	if err != nil {
		return nil, err
	}
	resp.Content = followUp.Choices[0].Message.Content
	return resp, nil
}

// applyArtifact finishes an artifact response: runs the continuation loop if
// the body looks truncated, then fills the canvas_update/code_update field and
// synthesizes the short local acknowledgment.
func (s *Service) applyArtifact(ctx context.Context, model string, req *Request, artifact *ArtifactUpdate, resp *Response) {
	body := artifact.Body()

	controller := continuation.NewController(s.logger)
	outcome, err := controller.Run(ctx, body, artifact.Language, s.continuationGenerator(model, req, artifact))
	if err != nil && !errors.Is(err, domain.ErrContinuationExhausted) {
		// Best available content still ships; continuation failure only means
		// no further growth.
		s.logger.Warn("continuation aborted", "error", err)
	}

	if artifact.Tool == tools.NameUpdateCode {
		artifact.Code = outcome.Content
		resp.CodeUpdate = artifact
	} else {
		artifact.Content = outcome.Content
		resp.CanvasUpdate = artifact
	}
	resp.WasContinued = outcome.WasContinued
	resp.Content = artifactAck(artifact)
}

// continuationGenerator builds the follow-up request described by the
// continuation contract: the last exchange is replaced by the original user
// request, the partial output, and a continue instruction. No tools are
// offered; the reply is raw text appended onto the partial.
func (s *Service) continuationGenerator(model string, req *Request, artifact *ArtifactUpdate) continuation.Generator {
	return func(ctx context.Context, soFar string, attempt int) (string, error) {
		messages := []gateway.Message{
			{Role: "system", Content: s.assembler.Assemble(req)},
			{Role: "user", Content: lastUserContent(req)},
			{Role: "assistant", Content: soFar},
			{Role: "user", Content: "Continue exactly from where you left off. Output only the remaining text, with no preamble and no repetition."},
		}

		completion, err := s.gw.CreateCompletion(ctx, &gateway.CompletionRequest{
			Model:    model,
			Messages: messages,
		})
		if err != nil {
			return "", err
		}
		return completion.Choices[0].Message.Content, nil
	}
}

func lastUserContent(req *Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

// artifactAck synthesizes the short local acknowledgment shown in the chat
// transcript next to an artifact.
func artifactAck(artifact *ArtifactUpdate) string {
	label := artifact.Label
	if label == "" {
		if artifact.Tool == tools.NameUpdateCode {
			label = "the code"
		} else {
			label = "the document"
		}
	}
	if artifact.Tool == tools.NameUpdateCode {
		return fmt.Sprintf("I've updated %s. Let me know what you'd like changed.", label)
	}
	return fmt.Sprintf("I've written %s to the canvas. Let me know what you'd like changed.", label)
}

// Stream handles a streaming chat request, delivering normalized events
// through emit. The start/delta/done envelope spans the whole request,
// including any second model call and continuations; emit receives exactly
// one terminal done or error event.
func (s *Service) Stream(ctx context.Context, userID string, req *Request, emit streaming.Emitter) error {
	if err := req.Validate(); err != nil {
		return err
	}

	registry, defs := s.buildTools(userID)
	model := req.ResolvedModel()
	messages := s.buildMessages(req)

	sink := newDedupSink(emit)

	events, err := s.gw.StreamCompletion(ctx, &gateway.CompletionRequest{
		Model:      model,
		Messages:   messages,
		Tools:      defs,
		ToolChoice: toolChoice(req),
		Stream:     true,
	})
	if err != nil {
		return err
	}

	transformer := streaming.NewTransformer(sink.emit)
	result, streamErr := transformer.Run(ctx, events)

	if artifactCall := result.ArtifactToolCall(); artifactCall != nil {
		return s.streamArtifact(ctx, model, req, registry, sink, result, streamErr)
	}

	if streamErr != nil {
		// Transport failure with no artifact to recover: terminate with an
		// error event. Partial prose already delivered stays client-side.
		_ = sink.emit(streaming.Event{Type: streaming.EventError, Mode: result.Mode, Error: userFacing(streamErr)})
		return streamErr
	}

	if len(result.ToolCalls) == 0 {
		return sink.emit(streaming.Event{Type: streaming.EventDone, Mode: streaming.ModeText, Content: result.Content})
	}

	// Search-type tools: execute, then stream the synthesis call into the
	// same envelope.
	dispatcher := NewDispatcher(registry, s.logger)
	outcome, err := dispatcher.Dispatch(ctx, gateway.Message{
		Role:      "assistant",
		Content:   result.Content,
		ToolCalls: result.ToolCalls,
	})
	if err != nil {
		return err
	}

	followUp, err := s.gw.StreamCompletion(ctx, &gateway.CompletionRequest{
		Model:    model,
		Messages: append(messages, outcome.ToolMessages...),
		Stream:   true,
	})
	if err != nil {
		_ = sink.emit(streaming.Event{Type: streaming.EventError, Mode: streaming.ModeText, Error: userFacing(err)})
		return err
	}

	synthesis := streaming.NewTransformer(sink.emit)
	synthResult, synthErr := synthesis.Run(ctx, followUp)
	if synthErr != nil {
		_ = sink.emit(streaming.Event{Type: streaming.EventError, Mode: streaming.ModeText, Error: userFacing(synthErr)})
		return synthErr
	}

	return sink.emit(streaming.Event{Type: streaming.EventDone, Mode: streaming.ModeText, Content: synthResult.Content})
}

// streamArtifact finishes an artifact stream: validates the payload through
// the tool executor, continues truncated bodies with further streamed calls,
// and emits the terminal done event.
func (s *Service) streamArtifact(ctx context.Context, model string, req *Request, registry *tools.Registry, sink *dedupSink, result *streaming.Result, streamErr error) error {
	if streamErr != nil && result.Content == "" {
		_ = sink.emit(streaming.Event{Type: streaming.EventError, Mode: result.Mode, Error: userFacing(streamErr)})
		return streamErr
	}

	artifact := &ArtifactUpdate{
		Label:    result.Label,
		Language: result.Language,
	}
	if result.Mode == streaming.ModeCode {
		artifact.Tool = tools.NameUpdateCode
		artifact.Code = result.Content
	} else {
		artifact.Tool = tools.NameUpdateCanvas
		artifact.Content = result.Content
	}

	controller := continuation.NewController(s.logger)
	outcome, err := controller.Run(ctx, result.Content, result.Language, func(ctx context.Context, soFar string, attempt int) (string, error) {
		return s.streamContinuation(ctx, model, req, sink, result.Mode, soFar)
	})
	if err != nil && !errors.Is(err, domain.ErrContinuationExhausted) {
		s.logger.Warn("continuation aborted", "error", err)
	}

	return sink.emit(streaming.Event{
		Type:         streaming.EventDone,
		Mode:         result.Mode,
		Content:      outcome.Content,
		Label:        result.Label,
		Language:     result.Language,
		Recovered:    result.Recovered,
		WasContinued: outcome.WasContinued,
	})
}

// streamContinuation issues one continuation call as a plain-text stream and
// relays its tokens as deltas in the ongoing artifact envelope.
func (s *Service) streamContinuation(ctx context.Context, model string, req *Request, sink *dedupSink, mode streaming.Mode, soFar string) (string, error) {
	messages := []gateway.Message{
		{Role: "system", Content: s.assembler.Assemble(req)},
		{Role: "user", Content: lastUserContent(req)},
		{Role: "assistant", Content: soFar},
		{Role: "user", Content: "Continue exactly from where you left off. Output only the remaining text, with no preamble and no repetition."},
	}

	events, err := s.gw.StreamCompletion(ctx, &gateway.CompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}

	var appended strings.Builder
	for {
		select {
		case <-ctx.Done():
			return appended.String(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return appended.String(), nil
			}
			if ev.Err != nil {
				return appended.String(), ev.Err
			}
			if len(ev.Chunk.Choices) == 0 {
				continue
			}
			if content := ev.Chunk.Choices[0].Delta.Content; content != "" {
				appended.WriteString(content)
				if err := sink.emit(streaming.Event{Type: streaming.EventDelta, Mode: mode, Content: content}); err != nil {
					return appended.String(), err
				}
			}
		}
	}
}

// userFacing maps internal errors onto short messages safe to put in an error
// event. Raw causes stay in the logs.
func userFacing(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return "The model is rate limited right now. Please try again shortly."
	case errors.Is(err, domain.ErrStreamTransport):
		return "The connection to the model dropped. Your partial answer is preserved."
	default:
		return "Something went wrong while generating. Please try again."
	}
}

// dedupSink forwards events but collapses repeated start events within one
// mode. The transformer restarts the envelope when a stream upgrades from
// prose to an artifact and when a second model call begins; the client must
// still see exactly one start per mode.
type dedupSink struct {
	inner   streaming.Emitter
	started map[streaming.Mode]bool
}

func newDedupSink(inner streaming.Emitter) *dedupSink {
	return &dedupSink{inner: inner, started: make(map[streaming.Mode]bool)}
}

func (d *dedupSink) emit(ev streaming.Event) error {
	if ev.Type == streaming.EventStart {
		if d.started[ev.Mode] {
			return nil
		}
		d.started[ev.Mode] = true
	}
	return d.inner(ev)
}
