package tools

import "context"

// Executor defines the interface for executing a tool.
// Implementations must be safe for concurrent use and respect context
// cancellation.
type Executor interface {
	// Execute runs the tool with the given input parameters. The input map
	// carries the tool-specific parameters from the tool schema. The returned
	// value must be JSON-serializable (maps, slices, primitives).
	Execute(ctx context.Context, input map[string]interface{}) (interface{}, error)
}
