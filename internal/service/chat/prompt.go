package chat

import (
	"strings"

	"lumina/internal/config"
)

// Assembler builds the system instruction for a chat request from admin
// prompt settings and the user's profile. It is a pure transform: no I/O.
type Assembler struct {
	settings *config.PromptSettings
}

// NewAssembler creates an assembler over loaded prompt settings.
func NewAssembler(settings *config.PromptSettings) *Assembler {
	return &Assembler{settings: settings}
}

// Assemble returns the system instruction for req.
//
// Forced canvas/code mode REPLACES the whole assembled prompt with a minimal
// focused instruction set rather than appending to it. Generation-only
// requests pay no token overhead for profile and conversation guidance the
// model will not use.
//
// Otherwise the sections concatenate in fixed order: base prompt, profile
// snippets (non-empty only), global admin context, mode rules.
func (a *Assembler) Assemble(req *Request) string {
	if req.ForceCanvas {
		return a.settings.CanvasFocused
	}
	if req.ForceCode {
		return a.settings.CodeFocused
	}

	sections := make([]string, 0, 8)
	if a.settings.Base != "" {
		sections = append(sections, a.settings.Base)
	}

	if p := req.Profile; p != nil {
		if p.Identity != "" {
			sections = append(sections, "About the user: "+p.Identity)
		}
		if p.Context != "" {
			sections = append(sections, "Current context from the user: "+p.Context)
		}
		if p.Memory != "" {
			sections = append(sections, "Things to remember about the user: "+p.Memory)
		}
	}

	if a.settings.GlobalContext != "" {
		sections = append(sections, a.settings.GlobalContext)
	}

	if rules := a.modeRules(req); rules != "" {
		sections = append(sections, rules)
	}

	return strings.Join(sections, "\n\n")
}

func (a *Assembler) modeRules(req *Request) string {
	if req.ForceWebSearch {
		return a.settings.Modes.Search
	}

	rules := make([]string, 0, 4)
	if a.settings.Modes.Conversation != "" {
		rules = append(rules, a.settings.Modes.Conversation)
	}
	if a.settings.Modes.Canvas != "" {
		rules = append(rules, a.settings.Modes.Canvas)
	}
	if a.settings.Modes.Code != "" {
		rules = append(rules, a.settings.Modes.Code)
	}
	if a.settings.Modes.Search != "" {
		rules = append(rules, a.settings.Modes.Search)
	}
	return strings.Join(rules, "\n")
}
