package voice

import (
	"time"

	"lumina/internal/domain/models"
)

// TurnBuffer accumulates conversation turns during an active voice session
// and tracks how far they have been persisted. All access happens on the
// bridge's event loop goroutine; saves advance lastSaved so that auto-save,
// deactivation and emergency saves are idempotent as long as they are
// serialized.
type TurnBuffer struct {
	turns     []models.ConversationTurn
	lastSaved int
}

// NewTurnBuffer creates an empty buffer.
func NewTurnBuffer() *TurnBuffer {
	return &TurnBuffer{}
}

// Append records a finished turn.
func (b *TurnBuffer) Append(role, transcript string) {
	if transcript == "" {
		return
	}
	b.turns = append(b.turns, models.ConversationTurn{
		Role:       role,
		Transcript: transcript,
		Timestamp:  time.Now().UTC(),
	})
}

// Len returns the total number of buffered turns.
func (b *TurnBuffer) Len() int { return len(b.turns) }

// Unsaved returns the turns past the save pointer, converted to messages
// ready for persistence.
func (b *TurnBuffer) Unsaved() []models.ChatMessage {
	pending := b.turns[b.lastSaved:]
	if len(pending) == 0 {
		return nil
	}

	messages := make([]models.ChatMessage, len(pending))
	for i, turn := range pending {
		messages[i] = models.ChatMessage{
			Role:      turn.Role,
			Content:   turn.Transcript,
			Kind:      models.KindVoice,
			ImageURL:  turn.ImageURL,
			Timestamp: turn.Timestamp,
		}
	}
	return messages
}

// MarkSaved advances the save pointer past n just-persisted turns.
func (b *TurnBuffer) MarkSaved(n int) {
	b.lastSaved += n
	if b.lastSaved > len(b.turns) {
		b.lastSaved = len(b.turns)
	}
}
