package models

// DefaultModel is used when the request does not name a model.
const DefaultModel = "anthropic/claude-sonnet-4.5"

// allowedModels is the enumerated set of model identifiers the chat endpoint
// will route to the gateway. Requests naming anything else are rejected before
// any upstream call (prevents arbitrary backend routing).
var allowedModels = map[string]struct{}{
	"anthropic/claude-sonnet-4.5":  {},
	"anthropic/claude-haiku-4.5":   {},
	"openai/gpt-4o":                {},
	"openai/gpt-4o-mini":           {},
	"google/gemini-2.5-flash":      {},
	"meta-llama/llama-3.3-70b-instruct": {},
}

// IsAllowedModel reports whether model is in the allow-list.
func IsAllowedModel(model string) bool {
	_, ok := allowedModels[model]
	return ok
}

// AllowedModels returns the allow-list for capability listings.
func AllowedModels() []string {
	out := make([]string, 0, len(allowedModels))
	for m := range allowedModels {
		out = append(out, m)
	}
	return out
}
