package domain

import (
	"context"
	"errors"
)

// ProcessingType names the branch that handled a chat message.
type ProcessingType string

const (
	// ProcessingRegexp is the deterministic pattern-matched fast path.
	ProcessingRegexp ProcessingType = "regexp"
	// ProcessingLLM is the provider-backed fallback path.
	ProcessingLLM ProcessingType = "llm"
)

// SessionContext identifies the portfolio scope for one chat call.
// Exactly one of UserID or GuestID must be set.
type SessionContext struct {
	UserID  string
	GuestID string
	Guest   bool
}

// Validate enforces the one-of identity rule.
func (s SessionContext) Validate() error {
	if s.UserID == "" && s.GuestID == "" {
		return errors.New("session context requires a user or guest id")
	}
	if s.UserID != "" && s.GuestID != "" {
		return errors.New("session context must not carry both a user and guest id")
	}
	return nil
}

// Ref returns the storage scoping key for this session.
func (s SessionContext) Ref() SessionRef {
	if s.GuestID != "" {
		return SessionRef{ID: s.GuestID, Guest: true}
	}
	return SessionRef{ID: s.UserID}
}

// ChatRequest captures one incoming chat message plus its session identity.
type ChatRequest struct {
	Context context.Context
	Text    string
	Session SessionContext
	Debug   bool
}

// ProcessingResult is the terminal, user-facing artifact of one chat call.
// Content never carries raw error text; failures are normalized upstream.
type ProcessingResult struct {
	Success         bool
	Content         string
	ProcessingType  ProcessingType
	ExecutionTimeMS int64
	Provider        string
	FromCache       bool
}

// ChatService exposes the use-case boundary for handling a chat message.
type ChatService interface {
	Process(ChatRequest) (ProcessingResult, error)
}
