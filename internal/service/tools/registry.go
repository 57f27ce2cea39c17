package tools

import (
	"context"
	"fmt"
	"sync"

	"lumina/internal/domain"
)

// Call represents a single tool invocation request.
type Call struct {
	ID    string                 `json:"id"`    // tool call id from the model
	Name  string                 `json:"name"`  // tool name
	Input map[string]interface{} `json:"input"` // tool parameters
}

// Result represents the result of a tool execution.
type Result struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Result  interface{} `json:"result"`   // execution result (nil if error)
	Error   error       `json:"error"`    // execution error (nil if success)
	IsError bool        `json:"is_error"` // whether execution failed
}

// Registry manages tool executors and handles tool execution.
// It is thread-safe and can be used concurrently.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register adds a tool executor to the registry.
// If a tool with the same name already exists, it will be replaced.
func (r *Registry) Register(name string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
}

// Get retrieves a tool executor by name.
// Returns nil if the tool is not registered.
func (r *Registry) Get(name string) Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[name]
}

// Execute runs a single tool and returns the result. A missing tool or a
// failing execution is reported through Result.IsError; callers decide how to
// degrade (the dispatch loop never aborts on a tool failure).
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	executor := r.Get(call.Name)
	if executor == nil {
		return Result{
			ID:      call.ID,
			Name:    call.Name,
			Error:   fmt.Errorf("%w: tool not found: %s", domain.ErrToolExecution, call.Name),
			IsError: true,
		}
	}

	result, err := executor.Execute(ctx, call.Input)
	if err != nil {
		return Result{
			ID:      call.ID,
			Name:    call.Name,
			Error:   fmt.Errorf("%w: %v", domain.ErrToolExecution, err),
			IsError: true,
		}
	}

	return Result{
		ID:     call.ID,
		Name:   call.Name,
		Result: result,
	}
}
