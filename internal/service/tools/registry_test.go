package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lumina/internal/domain/models"
	"lumina/internal/service/tools/external"
)

// mockTool is a configurable test executor.
type mockTool struct {
	result interface{}
	err    error
	gotIn  map[string]interface{}
}

func (m *mockTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	m.gotIn = input
	return m.result, m.err
}

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", &mockTool{result: "hello"})

	res := reg.Execute(context.Background(), Call{ID: "c1", Name: "echo", Input: map[string]interface{}{"x": 1.0}})
	if res.IsError {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if res.Result != "hello" {
		t.Errorf("Result = %v, want hello", res.Result)
	}
	if res.ID != "c1" || res.Name != "echo" {
		t.Errorf("identity not carried through: %+v", res)
	}
}

func TestRegistryExecuteMissingTool(t *testing.T) {
	reg := NewRegistry()

	res := reg.Execute(context.Background(), Call{ID: "c1", Name: "nope"})
	if !res.IsError {
		t.Fatal("expected IsError for unknown tool")
	}
	if res.Error == nil || !strings.Contains(res.Error.Error(), "not found") {
		t.Errorf("Error = %v, want tool not found", res.Error)
	}
}

func TestRegistryExecuteToolFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register("boom", &mockTool{err: errors.New("kaboom")})

	res := reg.Execute(context.Background(), Call{ID: "c1", Name: "boom"})
	if !res.IsError {
		t.Fatal("expected IsError when executor fails")
	}
	if res.Result != nil {
		t.Errorf("Result should be nil on failure, got %v", res.Result)
	}
}

// mockSearchClient returns canned web results.
type mockSearchClient struct {
	gotOpts external.SearchOptions
	results []external.SearchResult
}

func (m *mockSearchClient) Search(ctx context.Context, query string, opts external.SearchOptions) (*external.SearchResponse, error) {
	m.gotOpts = opts
	return &external.SearchResponse{Query: query, Results: m.results}, nil
}

func TestWebSearchToolClampsMaxResults(t *testing.T) {
	client := &mockSearchClient{}
	tool := NewWebSearchTool(client, nil)

	tests := []struct {
		name  string
		input map[string]interface{}
		want  int
	}{
		{"default", map[string]interface{}{"query": "go"}, 5},
		{"explicit", map[string]interface{}{"query": "go", "max_results": 3.0}, 3},
		{"above max", map[string]interface{}{"query": "go", "max_results": 50.0}, 10},
		{"below min", map[string]interface{}{"query": "go", "max_results": 0.0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tool.Execute(context.Background(), tt.input); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if client.gotOpts.MaxResults != tt.want {
				t.Errorf("MaxResults = %d, want %d", client.gotOpts.MaxResults, tt.want)
			}
		})
	}
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	tool := NewWebSearchTool(&mockSearchClient{}, nil)
	if _, err := tool.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing query")
	}
}

// mockSearcher returns canned chat history matches.
type mockSearcher struct {
	gotUserID string
	matches   []models.ChatMessage
}

func (m *mockSearcher) SearchMessages(ctx context.Context, userID, query string, limit int) ([]models.ChatMessage, error) {
	m.gotUserID = userID
	return m.matches, nil
}

func TestPastChatsToolScopesToUser(t *testing.T) {
	searcher := &mockSearcher{matches: []models.ChatMessage{
		{Role: "user", Content: "remember my dog is called Rex", Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}}
	tool := NewPastChatsTool("user-42", searcher, nil)

	out, err := tool.Execute(context.Background(), map[string]interface{}{"query": "dog"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if searcher.gotUserID != "user-42" {
		t.Errorf("searched as %q, want user-42", searcher.gotUserID)
	}

	m := out.(map[string]interface{})
	if m["match_count"] != 1 {
		t.Errorf("match_count = %v, want 1", m["match_count"])
	}
	if summary := m["summary"].(string); !strings.Contains(summary, "Rex") {
		t.Errorf("summary does not quote the matched message: %q", summary)
	}
}

func TestPastChatsToolNoMatches(t *testing.T) {
	tool := NewPastChatsTool("user-42", &mockSearcher{}, nil)

	out, err := tool.Execute(context.Background(), map[string]interface{}{"query": "unicorns"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	m := out.(map[string]interface{})
	if m["match_count"] != 0 {
		t.Errorf("match_count = %v, want 0", m["match_count"])
	}
}

func TestArtifactToolsValidate(t *testing.T) {
	canvas := NewCanvasTool()
	if _, err := canvas.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("update_canvas should reject missing content")
	}
	out, err := canvas.Execute(context.Background(), map[string]interface{}{"content": "# Plan", "label": "Plan"})
	if err != nil {
		t.Fatalf("update_canvas failed: %v", err)
	}
	if m := out.(map[string]interface{}); m["content"] != "# Plan" || m["label"] != "Plan" {
		t.Errorf("unexpected canvas result: %v", m)
	}

	code := NewCodeTool()
	if _, err := code.Execute(context.Background(), map[string]interface{}{"code": "print(1)"}); err == nil {
		t.Error("update_code should reject missing language")
	}
	out, err = code.Execute(context.Background(), map[string]interface{}{"code": "print(1)", "language": "Python"})
	if err != nil {
		t.Fatalf("update_code failed: %v", err)
	}
	if m := out.(map[string]interface{}); m["language"] != "python" {
		t.Errorf("language not normalized: %v", m["language"])
	}
}

func TestBuilderDefinitionsMatchRegistry(t *testing.T) {
	reg, defs := NewBuilder(nil).
		WithWebSearch(&mockSearchClient{}).
		WithPastChats("user-1", &mockSearcher{}).
		WithArtifacts().
		Build()

	if len(defs) != 4 {
		t.Fatalf("got %d definitions, want 4", len(defs))
	}
	for _, def := range defs {
		if reg.Get(def.Function.Name) == nil {
			t.Errorf("definition %q has no registered executor", def.Function.Name)
		}
	}
}
