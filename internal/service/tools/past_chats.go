package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lumina/internal/domain/models"
)

// MessageSearcher finds a user's past chat messages matching a query.
// Implemented by the postgres session repository.
type MessageSearcher interface {
	SearchMessages(ctx context.Context, userID, query string, limit int) ([]models.ChatMessage, error)
}

// PastChatsTool implements the 'search_past_chats' tool: a database query over
// the user's chat history, synthesized into a text summary the model can quote
// from. Tool instances are per-request: each carries the requesting user's ID
// so a search can never cross user boundaries.
type PastChatsTool struct {
	userID   string
	searcher MessageSearcher
	config   *Config
}

// NewPastChatsTool creates a search_past_chats executor scoped to one user.
func NewPastChatsTool(userID string, searcher MessageSearcher, config *Config) *PastChatsTool {
	if config == nil {
		config = DefaultConfig()
	}
	return &PastChatsTool{
		userID:   userID,
		searcher: searcher,
		config:   config,
	}
}

// Execute implements the Executor interface.
// Input parameters:
//   - query (string, required): what to look for in past conversations
//   - max_results (integer, optional)
//
// Returns:
//   - {summary: string, match_count: int}
func (t *PastChatsTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	query, ok := input["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, errors.New("missing required parameter: query (string)")
	}
	query = strings.TrimSpace(query)

	limit := t.config.PastChatsDefaultLimit
	if maxVal, exists := input["max_results"]; exists {
		if maxFloat, ok := maxVal.(float64); ok {
			limit = int(maxFloat)
			if limit < 1 {
				limit = 1
			} else if limit > t.config.PastChatsMaxLimit {
				limit = t.config.PastChatsMaxLimit
			}
		}
	}

	matches, err := t.searcher.SearchMessages(ctx, t.userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("past chat search failed: %w", err)
	}

	return map[string]interface{}{
		"summary":     t.synthesize(query, matches),
		"match_count": len(matches),
	}, nil
}

// synthesize renders matched messages into a compact narrative block.
func (t *PastChatsTool) synthesize(query string, matches []models.ChatMessage) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No past conversations mention %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d past message(s) mentioning %q:\n", len(matches), query)
	for _, msg := range matches {
		snippet := msg.Content
		if len(snippet) > t.config.PastChatsSnippetSize {
			snippet = snippet[:t.config.PastChatsSnippetSize] + "…"
		}
		fmt.Fprintf(&b, "- [%s, %s] %s\n", msg.Role, msg.Timestamp.Format("2006-01-02"), snippet)
	}
	return b.String()
}
