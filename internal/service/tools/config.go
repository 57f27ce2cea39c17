package tools

// Config centralizes tool configuration, replacing magic numbers scattered
// through tool implementations.
type Config struct {
	// Web search tool
	WebSearchDefaultLimit int
	WebSearchMaxLimit     int

	// Past-chat search tool
	PastChatsDefaultLimit int
	PastChatsMaxLimit     int
	PastChatsSnippetSize  int // characters of each matched message included in the summary
}

// DefaultConfig returns the default tool configuration.
func DefaultConfig() *Config {
	return &Config{
		WebSearchDefaultLimit: 5,
		WebSearchMaxLimit:     10,

		PastChatsDefaultLimit: 5,
		PastChatsMaxLimit:     20,
		PastChatsSnippetSize:  300,
	}
}
