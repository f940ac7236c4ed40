// Package session keeps the short conversational history attached to a
// session id.
package session

import (
	"context"
	"errors"
	"strings"
)

// DefaultMaxExchanges is how many query/answer pairs a session remembers.
const DefaultMaxExchanges = 2

// ErrSessionNotFound is returned by Clear for ids that were never created.
var ErrSessionNotFound = errors.New("session not found")

type Store interface {
	CreateSession(ctx context.Context) (string, error)
	// History returns the formatted exchanges, or "" for unknown or empty
	// sessions.
	History(ctx context.Context, id string) (string, error)
	// Append records one exchange, creating the session when needed.
	Append(ctx context.Context, id, query, answer string) error
	Clear(ctx context.Context, id string) error
}

type Exchange struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

func formatHistory(exchanges []Exchange) string {
	parts := make([]string, 0, len(exchanges))
	for _, ex := range exchanges {
		parts = append(parts, "User: "+ex.Query+"\nAssistant: "+ex.Answer)
	}
	return strings.Join(parts, "\n")
}

func normalizeMax(n int) int {
	if n <= 0 {
		return DefaultMaxExchanges
	}
	return n
}
