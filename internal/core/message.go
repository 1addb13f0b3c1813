package core

import (
	"strings"
	"time"
)

const (
	// SystemSender is the display name used for join/leave notices.
	SystemSender = "System"
	// AnonymousName is used when a connection or message carries no display name.
	AnonymousName = "Anonymous"
)

// Message is the domain model for a chat message.
// RoomID is empty for unscoped messages delivered to every connection.
type Message struct {
	ID        string
	RoomID    string
	From      string
	Text      string
	CreatedAt time.Time
}

// normalizeBody trims the body and rejects blank text.
func normalizeBody(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", opError("validate message", ErrValidation, nil)
	}
	return trimmed, nil
}

// displayName returns the first non-blank candidate, or AnonymousName.
func displayName(candidates ...string) string {
	for _, c := range candidates {
		if name := strings.TrimSpace(c); name != "" {
			return name
		}
	}
	return AnonymousName
}
