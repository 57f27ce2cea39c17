package tools

import (
	"context"
	"errors"
	"strings"
)

// CanvasTool implements 'update_canvas'. The tool produces no external side
// effect: its argument payload IS the final artifact, and the dispatch loop
// short-circuits the second model call when it ran. Execute only validates
// the payload and echoes it back as the artifact.
type CanvasTool struct{}

// NewCanvasTool creates an update_canvas executor.
func NewCanvasTool() *CanvasTool { return &CanvasTool{} }

// Execute implements the Executor interface.
// Input parameters:
//   - content (string, required): the complete canvas document
//   - label (string, optional): short human-readable title
func (t *CanvasTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	content, ok := input["content"].(string)
	if !ok || strings.TrimSpace(content) == "" {
		return nil, errors.New("missing required parameter: content (string)")
	}

	result := map[string]interface{}{
		"content": content,
	}
	if label, ok := input["label"].(string); ok && label != "" {
		result["label"] = label
	}
	return result, nil
}

// CodeTool implements 'update_code'. Same artifact contract as CanvasTool,
// with a required language for client-side rendering and completeness checks.
type CodeTool struct{}

// NewCodeTool creates an update_code executor.
func NewCodeTool() *CodeTool { return &CodeTool{} }

// Execute implements the Executor interface.
// Input parameters:
//   - code (string, required): one complete source file
//   - language (string, required): language identifier (html, python, ...)
//   - label (string, optional)
func (t *CodeTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	code, ok := input["code"].(string)
	if !ok || strings.TrimSpace(code) == "" {
		return nil, errors.New("missing required parameter: code (string)")
	}
	language, ok := input["language"].(string)
	if !ok || strings.TrimSpace(language) == "" {
		return nil, errors.New("missing required parameter: language (string)")
	}

	result := map[string]interface{}{
		"code":     code,
		"language": strings.ToLower(strings.TrimSpace(language)),
	}
	if label, ok := input["label"].(string); ok && label != "" {
		result["label"] = label
	}
	return result, nil
}
