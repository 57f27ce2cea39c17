package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSettings holds the operator-configured prompt material merged into
// every chat request. This is admin configuration, not user data: it is read
// once at startup from a YAML file and treated as immutable afterwards.
type PromptSettings struct {
	// Base is the admin-configured system prompt prepended to every request.
	Base string `yaml:"base"`

	// GlobalContext is appended after user profile context (announcements,
	// date-sensitive guidance, policy reminders).
	GlobalContext string `yaml:"global_context"`

	// Modes carries per-mode behavior/tool rules appended last.
	Modes ModePrompts `yaml:"modes"`

	// CanvasFocused and CodeFocused fully REPLACE the assembled prompt when
	// the client forces canvas or code mode. Keeping these minimal cuts token
	// overhead and latency for generation-only requests.
	CanvasFocused string `yaml:"canvas_focused"`
	CodeFocused   string `yaml:"code_focused"`
}

// ModePrompts holds the mode-specific instruction blocks.
type ModePrompts struct {
	Conversation string `yaml:"conversation"`
	Canvas       string `yaml:"canvas"`
	Code         string `yaml:"code"`
	Search       string `yaml:"search"`
}

// LoadPromptSettings reads prompt settings from a YAML file. A missing file is
// not an error: built-in defaults keep the server usable without operator
// configuration.
func LoadPromptSettings(path string) (*PromptSettings, error) {
	settings := defaultPromptSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	return settings, nil
}

func defaultPromptSettings() *PromptSettings {
	return &PromptSettings{
		Base: "You are a helpful, concise assistant.",
		Modes: ModePrompts{
			Conversation: "Answer conversationally. Use tools only when they clearly improve the answer.",
			Canvas:       "When asked to write a document, call update_canvas with the complete document as the content argument.",
			Code:         "When asked to build something, call update_code with a single complete file as the code argument.",
			Search:       "When the question needs current information, call web_search before answering and cite sources.",
		},
		CanvasFocused: "Call update_canvas exactly once with the complete requested document. Do not add commentary.",
		CodeFocused:   "Call update_code exactly once with one complete, runnable file. Do not add commentary.",
	}
}
