package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lumina/internal/gateway"
	"lumina/internal/service/tools"
)

// WebSource is a citation collected from web_search results.
type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ArtifactUpdate is a validated canvas or code artifact produced by an
// update_canvas/update_code call.
type ArtifactUpdate struct {
	Tool     string `json:"-"`
	Content  string `json:"content,omitempty"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Body returns the artifact text regardless of which tool produced it.
func (a *ArtifactUpdate) Body() string {
	if a.Tool == tools.NameUpdateCode {
		return a.Code
	}
	return a.Content
}

// DispatchOutcome summarizes one pass through the tool-call loop.
type DispatchOutcome struct {
	// ToolMessages are the assistant tool-call message and the tool results,
	// ready to append to the conversation for a follow-up model call.
	ToolMessages []gateway.Message

	// ToolCallsUsed lists executed tool names in request order.
	ToolCallsUsed []string

	// Artifact is set when update_canvas or update_code ran. Its presence
	// short-circuits the follow-up model call.
	Artifact *ArtifactUpdate

	// WebSources collects citations from web_search results.
	WebSources []WebSource

	// NeedsFollowUp is true when search-type tools ran and a second model
	// call must synthesize their results into prose.
	NeedsFollowUp bool
}

// Dispatcher executes the model's requested tool calls sequentially.
// A failing tool never aborts the cycle: its result degrades into an
// apologetic message the model can relay.
type Dispatcher struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over a per-request tool registry.
func NewDispatcher(registry *tools.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch runs every tool call from an assistant message, in the order the
// model requested them. Later tools may depend on earlier results appearing
// first in history, so execution is strictly sequential.
func (d *Dispatcher) Dispatch(ctx context.Context, assistantMsg gateway.Message) (*DispatchOutcome, error) {
	outcome := &DispatchOutcome{
		ToolMessages: []gateway.Message{assistantMsg},
	}

	for _, call := range assistantMsg.ToolCalls {
		name := call.Function.Name
		outcome.ToolCallsUsed = append(outcome.ToolCallsUsed, name)

		input := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				d.logger.Warn("unparseable tool arguments", "tool", name, "error", err)
			}
		}

		result := d.registry.Execute(ctx, tools.Call{ID: call.ID, Name: name, Input: input})

		var resultText string
		if result.IsError {
			d.logger.Warn("tool execution failed", "tool", name, "error", result.Error)
			resultText = fmt.Sprintf("Sorry, the %s tool failed: %v. Answer as best you can without it.", name, result.Error)
		} else {
			d.collect(name, result.Result, outcome)
			encoded, err := json.Marshal(result.Result)
			if err != nil {
				resultText = fmt.Sprintf("%v", result.Result)
			} else {
				resultText = string(encoded)
			}
		}

		outcome.ToolMessages = append(outcome.ToolMessages, gateway.Message{
			Role:       "tool",
			Content:    resultText,
			ToolCallID: call.ID,
		})
	}

	outcome.NeedsFollowUp = outcome.Artifact == nil && len(outcome.ToolCallsUsed) > 0
	return outcome, nil
}

// collect pulls structured side products (artifacts, citations) out of a
// successful tool result.
func (d *Dispatcher) collect(name string, result interface{}, outcome *DispatchOutcome) {
	switch name {
	case tools.NameUpdateCanvas, tools.NameUpdateCode:
		m, ok := result.(map[string]interface{})
		if !ok {
			return
		}
		artifact := &ArtifactUpdate{Tool: name}
		if v, ok := m["content"].(string); ok {
			artifact.Content = v
		}
		if v, ok := m["code"].(string); ok {
			artifact.Code = v
		}
		if v, ok := m["language"].(string); ok {
			artifact.Language = v
		}
		if v, ok := m["label"].(string); ok {
			artifact.Label = v
		}
		outcome.Artifact = artifact

	case tools.NameWebSearch:
		m, ok := result.(map[string]interface{})
		if !ok {
			return
		}
		results, ok := m["results"].([]map[string]interface{})
		if !ok {
			return
		}
		for _, r := range results {
			source := WebSource{}
			if v, ok := r["title"].(string); ok {
				source.Title = v
			}
			if v, ok := r["url"].(string); ok {
				source.URL = v
			}
			if source.URL != "" {
				outcome.WebSources = append(outcome.WebSources, source)
			}
		}
	}
}
