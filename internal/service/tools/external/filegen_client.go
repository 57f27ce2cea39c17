package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFileGenTimeout allows for slow document rendering upstream.
const DefaultFileGenTimeout = 60 * time.Second

// HTTPFileGenerator implements FileGenerator against the file-render service.
type HTTPFileGenerator struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFileGenerator creates a client for the file-render service.
func NewHTTPFileGenerator(baseURL string) *HTTPFileGenerator {
	return &HTTPFileGenerator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultFileGenTimeout,
		},
	}
}

// Generate implements FileGenerator.
func (c *HTTPFileGenerator) Generate(ctx context.Context, fileType, prompt string) (*GeneratedFile, error) {
	payload, err := json.Marshal(map[string]string{
		"file_type": fileType,
		"prompt":    prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file service error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		FileName    string `json:"file_name"`
		FileType    string `json:"file_type"`
		DownloadURL string `json:"download_url"`
		ExpiresAt   string `json:"expires_at,omitempty"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	file := &GeneratedFile{
		FileName:    parsed.FileName,
		FileType:    parsed.FileType,
		DownloadURL: parsed.DownloadURL,
	}
	if parsed.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, parsed.ExpiresAt); err == nil {
			file.ExpiresAt = &t
		}
	}

	return file, nil
}
