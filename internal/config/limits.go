package config

import "time"

const (
	// MaxMessagesPerRequest bounds the conversation history a single chat
	// request may carry. Longer histories should be truncated client-side.
	MaxMessagesPerRequest = 100

	// MaxMessageContentLength is the per-message content ceiling in characters.
	MaxMessageContentLength = 50000

	// MaxContinuations bounds follow-up generations for a truncated artifact.
	MaxContinuations = 3

	// ContentSlackThreshold is the tolerance (in characters) when comparing
	// accumulated streamed content against a terminal non-streamed content
	// field. If the terminal value is longer by more than this, deltas were
	// lost in transport and the terminal value wins.
	ContentSlackThreshold = 8

	// GatewayMaxAttempts is the total attempt budget for one gateway call.
	GatewayMaxAttempts = 3

	// GatewayRetryBaseDelay is the first backoff delay; it doubles per attempt.
	GatewayRetryBaseDelay = 500 * time.Millisecond

	// VoiceAutoSaveInterval is how often buffered voice turns are flushed to
	// the session store while a voice session is active.
	VoiceAutoSaveInterval = 30 * time.Second
)
