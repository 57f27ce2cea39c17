package continuation

import (
	"context"
	"fmt"
	"log/slog"

	"lumina/internal/config"
	"lumina/internal/domain"
)

// State tracks where a generation is in its continuation lifecycle.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateComplete
	StateIncomplete
	StateContinuing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateIncomplete:
		return "incomplete"
	case StateContinuing:
		return "continuing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Generator produces the next slice of content given everything generated so
// far. attempt is 1-based. The returned string is appended to the seed; it
// must not repeat it.
type Generator func(ctx context.Context, soFar string, attempt int) (string, error)

// Outcome is the final result of a generation plus its continuations.
type Outcome struct {
	Content       string
	WasContinued  bool
	Continuations int
	Complete      bool
}

// Controller drives the continue-on-truncation loop for artifact output.
// It never exceeds its continuation budget, and content only ever grows.
type Controller struct {
	max    int
	logger *slog.Logger
	state  State
}

// NewController creates a controller with the standard continuation budget.
func NewController(logger *slog.Logger) *Controller {
	return &Controller{
		max:    config.MaxContinuations,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return c.state }

// Run takes the content of an initial generation and, while it looks
// truncated, asks gen for more until it completes or the budget runs out.
// A generator error or context cancellation discards that attempt's output
// and returns what had accumulated before it.
func (c *Controller) Run(ctx context.Context, content, language string, gen Generator) (Outcome, error) {
	c.state = StateStreaming

	out := Outcome{Content: content}
	if IsComplete(content, language) {
		c.state = StateDone
		out.Complete = true
		return out, nil
	}
	c.state = StateIncomplete

	for attempt := 1; attempt <= c.max; attempt++ {
		if err := ctx.Err(); err != nil {
			c.state = StateDone
			return out, err
		}

		c.state = StateContinuing
		c.logger.Info("continuing truncated generation",
			"attempt", attempt,
			"max", c.max,
			"content_length", len(out.Content))

		more, err := gen(ctx, out.Content, attempt)
		if err != nil {
			c.state = StateDone
			return out, fmt.Errorf("continuation %d failed: %w", attempt, err)
		}
		if ctx.Err() != nil {
			// Cancelled mid-attempt. The partial tail is untrustworthy.
			c.state = StateDone
			return out, ctx.Err()
		}

		out.Content += more
		out.WasContinued = true
		out.Continuations = attempt

		if IsComplete(out.Content, language) {
			c.state = StateDone
			out.Complete = true
			return out, nil
		}
	}

	c.state = StateDone
	c.logger.Warn("continuation budget exhausted",
		"continuations", out.Continuations,
		"content_length", len(out.Content))
	return out, domain.ErrContinuationExhausted
}
