package tools

import (
	"lumina/internal/gateway"
	"lumina/internal/service/tools/external"
)

// Builder assembles a per-request registry together with the matching wire
// definitions. A tool is only advertised to the model when its executor is
// registered, so the two can never drift apart.
type Builder struct {
	registry    *Registry
	definitions []gateway.Tool
	config      *Config
}

// NewBuilder creates a builder with the given limits. Pass nil for defaults.
func NewBuilder(config *Config) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Builder{
		registry: NewRegistry(),
		config:   config,
	}
}

// WithWebSearch registers web_search backed by the given search client.
func (b *Builder) WithWebSearch(client external.SearchClient) *Builder {
	b.registry.Register(NameWebSearch, NewWebSearchTool(client, b.config))
	b.definitions = append(b.definitions, WebSearchDefinition())
	return b
}

// WithPastChats registers search_past_chats scoped to userID.
func (b *Builder) WithPastChats(userID string, searcher MessageSearcher) *Builder {
	b.registry.Register(NameSearchPastChats, NewPastChatsTool(userID, searcher, b.config))
	b.definitions = append(b.definitions, PastChatsDefinition())
	return b
}

// WithArtifacts registers update_canvas and update_code.
func (b *Builder) WithArtifacts() *Builder {
	b.registry.Register(NameUpdateCanvas, NewCanvasTool())
	b.definitions = append(b.definitions, CanvasDefinition())
	b.registry.Register(NameUpdateCode, NewCodeTool())
	b.definitions = append(b.definitions, CodeDefinition())
	return b
}

// WithFileGeneration registers generate_file backed by the render service.
func (b *Builder) WithFileGeneration(generator external.FileGenerator) *Builder {
	b.registry.Register(NameGenerateFile, NewFileTool(generator))
	b.definitions = append(b.definitions, FileDefinition())
	return b
}

// Build returns the registry and the definitions to send to the model.
func (b *Builder) Build() (*Registry, []gateway.Tool) {
	return b.registry, b.definitions
}
