package continuation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"lumina/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		language string
		want     bool
	}{
		{"html closed", "<html><body>hi</body></html>", "html", true},
		{"html truncated", "<html><body><div>hi", "html", false},
		{"python balanced", "def f():\n    return {1: 2}\n", "python", true},
		{"python open brace", "def f():\n    return {1: 2,\n", "python", false},
		{"go open string", `fmt.Println("hel`, "go", false},
		{"bracket in comment ignored", "x = 1  # unmatched (\n", "python", true},
		{"markdown plain", "Here's the plan. It covers Q1 (roughly).", "markdown", true},
		{"markdown open fence", "Plan:\n```go\nfunc main() {", "markdown", false},
		{"empty never complete", "", "python", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.content, tt.language); got != tt.want {
				t.Errorf("IsComplete(%q, %q) = %v, want %v", tt.content, tt.language, got, tt.want)
			}
		})
	}
}

func TestControllerCompleteFirstPass(t *testing.T) {
	c := NewController(testLogger())

	called := false
	out, err := c.Run(context.Background(), "<html></html>", "html", func(ctx context.Context, soFar string, attempt int) (string, error) {
		called = true
		return "", nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if called {
		t.Error("generator should not run when content is already complete")
	}
	if out.WasContinued || !out.Complete || out.Continuations != 0 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if c.State() != StateDone {
		t.Errorf("state = %v, want done", c.State())
	}
}

func TestControllerContinuesUntilComplete(t *testing.T) {
	c := NewController(testLogger())

	parts := []string{"<body>more", "</body></html>"}
	var seeds []string
	out, err := c.Run(context.Background(), "<html>", "html", func(ctx context.Context, soFar string, attempt int) (string, error) {
		seeds = append(seeds, soFar)
		return parts[attempt-1], nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "<html><body>more</body></html>"
	if out.Content != want {
		t.Errorf("Content = %q, want %q", out.Content, want)
	}
	if !out.WasContinued || out.Continuations != 2 || !out.Complete {
		t.Errorf("unexpected outcome: %+v", out)
	}
	// Each attempt must see everything accumulated so far.
	if len(seeds) != 2 || seeds[0] != "<html>" || seeds[1] != "<html><body>more" {
		t.Errorf("seeds = %q", seeds)
	}
}

func TestControllerBudgetExhausted(t *testing.T) {
	c := NewController(testLogger())

	calls := 0
	out, err := c.Run(context.Background(), "<html>", "html", func(ctx context.Context, soFar string, attempt int) (string, error) {
		calls++
		return "<p>still going", nil
	})
	if !errors.Is(err, domain.ErrContinuationExhausted) {
		t.Fatalf("err = %v, want ErrContinuationExhausted", err)
	}
	if calls != 3 {
		t.Errorf("generator ran %d times, want 3", calls)
	}
	if out.Continuations != 3 || !out.WasContinued || out.Complete {
		t.Errorf("unexpected outcome: %+v", out)
	}
	// Content still grew monotonically even without completing.
	if !strings.HasPrefix(out.Content, "<html>") || strings.Count(out.Content, "<p>still going") != 3 {
		t.Errorf("Content = %q", out.Content)
	}
}

func TestControllerGeneratorErrorKeepsAccumulated(t *testing.T) {
	c := NewController(testLogger())

	out, err := c.Run(context.Background(), "<html>", "html", func(ctx context.Context, soFar string, attempt int) (string, error) {
		if attempt == 2 {
			return "half a chu", errors.New("upstream hiccup")
		}
		return "<body>ok", nil
	})
	if err == nil {
		t.Fatal("expected error from failing continuation")
	}
	// The failed attempt's partial output is discarded.
	if out.Content != "<html><body>ok" {
		t.Errorf("Content = %q, want accumulated prefix only", out.Content)
	}
	if out.Continuations != 1 {
		t.Errorf("Continuations = %d, want 1", out.Continuations)
	}
}

func TestControllerCancelledContext(t *testing.T) {
	c := NewController(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	out, err := c.Run(ctx, "<html>", "html", func(ctx context.Context, soFar string, attempt int) (string, error) {
		cancel()
		return "tail that must be discarded", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if out.Content != "<html>" {
		t.Errorf("cancelled attempt leaked into content: %q", out.Content)
	}
}
