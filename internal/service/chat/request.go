package chat

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"lumina/internal/config"
	"lumina/internal/domain"
	"lumina/internal/domain/models"
)

// IncomingMessage is one conversation message as sent by the client.
type IncomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile carries the user's self-description merged into the system prompt.
// Empty fields are skipped during assembly.
type Profile struct {
	Identity string `json:"identity,omitempty"`
	Context  string `json:"context,omitempty"`
	Memory   string `json:"memory,omitempty"`
}

// Request is the chat endpoint's JSON body.
type Request struct {
	Messages       []IncomingMessage `json:"messages"`
	Profile        *Profile          `json:"profile,omitempty"`
	Model          string            `json:"model,omitempty"`
	SessionID      string            `json:"sessionId,omitempty"`
	ForceWebSearch bool              `json:"forceWebSearch,omitempty"`
	ForceCanvas    bool              `json:"forceCanvas,omitempty"`
	ForceCode      bool              `json:"forceCode,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
}

// Validate checks shape and size limits and resolves the model against the
// allow-list. It runs before any upstream call and maps failures onto the
// 400-class domain errors.
func (r *Request) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Messages,
			validation.Required.Error("messages must not be empty"),
			validation.Length(1, config.MaxMessagesPerRequest),
			validation.Each(validation.By(validateMessage)),
		),
	)
	if err != nil {
		return &domain.InvalidInputError{Message: err.Error()}
	}

	if r.Model != "" && !models.IsAllowedModel(r.Model) {
		return &domain.InvalidModelError{Message: fmt.Sprintf("model %q is not available", r.Model)}
	}

	return nil
}

// ResolvedModel returns the requested model, or the default when unset.
func (r *Request) ResolvedModel() string {
	if r.Model == "" {
		return models.DefaultModel
	}
	return r.Model
}

func validateMessage(value interface{}) error {
	msg, ok := value.(IncomingMessage)
	if !ok {
		return fmt.Errorf("invalid message type")
	}
	if msg.Role == "" {
		return fmt.Errorf("role is required")
	}
	if msg.Content == "" {
		return fmt.Errorf("content is required")
	}
	if len([]rune(msg.Content)) > config.MaxMessageContentLength {
		return fmt.Errorf("content exceeds %d characters", config.MaxMessageContentLength)
	}
	return nil
}
