package ai

import (
	"context"
)

// Provider is the base interface for all generation providers
type Provider interface {
	// GenerateReply produces the next assistant reply for a conversation
	GenerateReply(ctx context.Context, req *ReplyRequest) (string, error)

	// IsAvailable checks if the provider is available/configured
	IsAvailable() bool

	// Name returns the provider name
	Name() string
}

// Message is one prior exchange in the conversation, oldest first.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ReplyRequest carries everything a provider needs to continue a dialogue.
type ReplyRequest struct {
	// Instruction is the call-level system instruction, seeded once per call.
	Instruction string
	// History replays the call's completed turns so the model keeps
	// conversational memory across webhook invocations.
	History []Message
	// Prompt is the current turn: retrieved context plus the utterance.
	Prompt string
}
