package models

import (
	"strings"
	"time"
)

// Message kinds
const (
	KindText  = "text"
	KindVoice = "voice"
	KindImage = "image"
)

// ChatMessage is a single message inside a session. Immutable once created;
// during streaming assembly the client grows content via appended deltas until
// the terminal done event.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Kind      string    `json:"kind"` // text, voice, image
	ImageURL  *string   `json:"image_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession groups an ordered message history with its optional canvas artifact.
// At most one active generation appends to a session at a time (single-flight
// guard enforced at the handler layer, not by a lock).
type ChatSession struct {
	ID            string        `json:"id"`
	UserID        string        `json:"-"`
	Title         string        `json:"title"`
	CreatedAt     time.Time     `json:"created_at"`
	LastMessageAt time.Time     `json:"last_message_at"`
	Messages      []ChatMessage `json:"messages,omitempty"`
	CanvasContent *string       `json:"canvas_content,omitempty"`
}

// ConversationTurn is one spoken exchange buffered during an active voice
// session. Flushed into ChatMessage records at save points and cleared after
// successful persistence.
type ConversationTurn struct {
	Role       string    `json:"role"`
	Transcript string    `json:"transcript"`
	Timestamp  time.Time `json:"timestamp"`
	ImageURL   *string   `json:"image_url,omitempty"`
}

// MaxDerivedTitleLength bounds titles derived from the first user message.
const MaxDerivedTitleLength = 60

// DeriveTitle builds a session title from the first user message, truncated on
// a rune boundary.
func DeriveTitle(firstUserMessage string) string {
	title := strings.TrimSpace(firstUserMessage)
	if title == "" {
		return "New chat"
	}
	runes := []rune(title)
	if len(runes) > MaxDerivedTitleLength {
		return strings.TrimSpace(string(runes[:MaxDerivedTitleLength])) + "…"
	}
	return title
}
