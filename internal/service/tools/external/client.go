package external

import (
	"context"
	"time"
)

// SearchClient defines the interface for external search APIs.
// Implementations include Tavily, Brave, Serper, etc.
type SearchClient interface {
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// SearchOptions configures search behavior.
type SearchOptions struct {
	MaxResults int    // Maximum number of results to return
	Topic      string // Search category: "general", "news", "finance" (provider-specific)
}

// SearchResponse contains search results from the external API.
type SearchResponse struct {
	Results   []SearchResult
	Query     string
	Timestamp time.Time
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt *time.Time
	Score       float64
}

// FileGenerator defines the interface to the downloadable-file service. The
// generate_file tool delegates entirely to this collaborator; no rendering
// happens in this process.
type FileGenerator interface {
	// Generate asks the service to render a file of the given type from a
	// prompt and returns a short-lived download URL.
	Generate(ctx context.Context, fileType, prompt string) (*GeneratedFile, error)
}

// GeneratedFile describes a rendered file ready for download.
type GeneratedFile struct {
	FileName    string
	FileType    string
	DownloadURL string
	ExpiresAt   *time.Time
}
