package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

var errEmbedUnavailable = errors.New("embedding provider unavailable")

// Generator is a scripted answer.Generator double. It records every message
// sequence it receives and returns Reply (or Err).
//
// Generator is safe for concurrent use.
type Generator struct {
	Reply string
	Err   error

	mu       sync.Mutex
	received [][]*ai.Message
}

// Generate implements the answer.Generator contract.
func (g *Generator) Generate(_ context.Context, messages []*ai.Message) (string, error) {
	g.mu.Lock()
	g.received = append(g.received, messages)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	return g.Reply, nil
}

// Received returns all message sequences passed to Generate.
func (g *Generator) Received() [][]*ai.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.received
}
