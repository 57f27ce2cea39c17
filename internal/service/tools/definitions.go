package tools

import "lumina/internal/gateway"

// Tool names as they appear on the wire. The streaming transformer matches on
// update_canvas and update_code to switch output mode mid-stream.
const (
	NameWebSearch       = "web_search"
	NameSearchPastChats = "search_past_chats"
	NameUpdateCanvas    = "update_canvas"
	NameUpdateCode      = "update_code"
	NameGenerateFile    = "generate_file"
)

// WebSearchDefinition is the schema advertised to the model for web_search.
func WebSearchDefinition() gateway.Tool {
	return gateway.Tool{
		Type: "function",
		Function: gateway.Function{
			Name:        NameWebSearch,
			Description: "Search the web for current information. Use for questions about recent events, live data, or anything that may have changed since training.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results to return (default 5, max 10)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// PastChatsDefinition is the schema advertised for search_past_chats.
func PastChatsDefinition() gateway.Tool {
	return gateway.Tool{
		Type: "function",
		Function: gateway.Function{
			Name:        NameSearchPastChats,
			Description: "Search the user's earlier conversations with you. Use when the user refers to something you discussed before.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Keywords describing what to look for",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of past messages to return (default 5, max 20)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// CanvasDefinition is the schema advertised for update_canvas.
func CanvasDefinition() gateway.Tool {
	return gateway.Tool{
		Type: "function",
		Function: gateway.Function{
			Name:        NameUpdateCanvas,
			Description: "Write or rewrite the canvas document. Always send the complete document, not a diff. Use for essays, plans, and other long-form writing the user will iterate on.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content": map[string]interface{}{
						"type":        "string",
						"description": "The complete canvas document in Markdown",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Short title for the document",
					},
				},
				"required": []string{"content"},
			},
		},
	}
}

// CodeDefinition is the schema advertised for update_code.
func CodeDefinition() gateway.Tool {
	return gateway.Tool{
		Type: "function",
		Function: gateway.Function{
			Name:        NameUpdateCode,
			Description: "Write or rewrite the code artifact. Always send one complete, runnable file, not a diff.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code": map[string]interface{}{
						"type":        "string",
						"description": "The complete source file",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Language identifier, e.g. html, python, javascript",
					},
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Short title for the artifact",
					},
				},
				"required": []string{"code", "language"},
			},
		},
	}
}

// FileDefinition is the schema advertised for generate_file.
func FileDefinition() gateway.Tool {
	return gateway.Tool{
		Type: "function",
		Function: gateway.Function{
			Name:        NameGenerateFile,
			Description: "Generate a downloadable file (pdf, docx, xlsx, csv, txt) from a description of its contents.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fileType": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"pdf", "docx", "xlsx", "csv", "txt"},
						"description": "The file format to produce",
					},
					"prompt": map[string]interface{}{
						"type":        "string",
						"description": "What the file should contain",
					},
				},
				"required": []string{"fileType", "prompt"},
			},
		},
	}
}
