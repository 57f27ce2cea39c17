package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lumina/internal/service/tools/external"
)

// allowed generate_file types, matching what the render service supports.
var allowedFileTypes = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"xlsx": {},
	"csv":  {},
	"txt":  {},
}

// FileTool implements 'generate_file' by delegating to the file-render
// service. This process never renders documents itself.
type FileTool struct {
	generator external.FileGenerator
}

// NewFileTool creates a generate_file executor.
func NewFileTool(generator external.FileGenerator) *FileTool {
	return &FileTool{generator: generator}
}

// Execute implements the Executor interface.
// Input parameters:
//   - fileType (string, required): pdf, docx, xlsx, csv or txt
//   - prompt (string, required): what the file should contain
//
// Returns:
//   - {file_name, file_type, download_url, expires_at?}
func (t *FileTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	fileType, ok := input["fileType"].(string)
	if !ok || strings.TrimSpace(fileType) == "" {
		return nil, errors.New("missing required parameter: fileType (string)")
	}
	fileType = strings.ToLower(strings.TrimSpace(fileType))
	if _, ok := allowedFileTypes[fileType]; !ok {
		return nil, fmt.Errorf("unsupported fileType %q", fileType)
	}

	prompt, ok := input["prompt"].(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return nil, errors.New("missing required parameter: prompt (string)")
	}

	file, err := t.generator.Generate(ctx, fileType, prompt)
	if err != nil {
		return nil, fmt.Errorf("file generation failed: %w", err)
	}

	result := map[string]interface{}{
		"file_name":    file.FileName,
		"file_type":    file.FileType,
		"download_url": file.DownloadURL,
	}
	if file.ExpiresAt != nil {
		result["expires_at"] = file.ExpiresAt.Format(time.RFC3339)
	}
	return result, nil
}
