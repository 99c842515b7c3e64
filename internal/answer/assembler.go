// Package answer assembles retrieval context into generation prompts and
// packages provider answers as conversation turns.
//
// The assembler never surfaces provider failures to callers: generation
// errors and empty retrievals both degrade to canned, user-visible answers.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/retrieval"
)

// Canned user-visible answers for degraded states.
const (
	// NoContextAnswer is returned when retrieval finds nothing relevant.
	NoContextAnswer = "I don't have information about that in the documentation."

	// FallbackAnswer is returned when the generation provider fails.
	FallbackAnswer = "I'm having trouble generating an answer right now. Please try again in a moment."
)

// systemInstructions is the fixed system prompt for documentation answers.
const systemInstructions = `You are a documentation assistant. Answer the user's question using only the provided documentation excerpts. Quote file paths when referencing specific documents. If the excerpts do not contain the answer, say so plainly instead of guessing.`

// DefaultHistoryLimit bounds how many prior turns are loaded into the prompt.
const DefaultHistoryLimit = 20

// Searcher is the retrieval surface the assembler depends on.
// retrieval.Index satisfies this through duck typing.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...retrieval.SearchOption) ([]retrieval.Result, error)
}

// HistoryStore persists conversation turns. corpus.Store satisfies this.
type HistoryStore interface {
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]corpus.Turn, error)
	AppendTurn(ctx context.Context, sessionID uuid.UUID, turn corpus.Turn) error
}

// Generator is the generation provider contract: an ordered message sequence
// in, the answer text out.
type Generator interface {
	Generate(ctx context.Context, messages []*ai.Message) (string, error)
}

// TruncatePolicy trims ranked results before prompt assembly. The baseline
// keeps everything; a token-budget policy can be plugged in here without
// changing the assembler interface. Results arrive in rank order, so a
// budget policy drops from the tail (lowest-ranked first).
type TruncatePolicy func(results []retrieval.Result) []retrieval.Result

// Assembler answers questions: retrieve, assemble, generate, persist.
type Assembler struct {
	index     Searcher
	history   HistoryStore
	generator Generator
	logger    *slog.Logger

	topK         int
	historyLimit int
	truncate     TruncatePolicy
}

// Config configures an Assembler. Zero values fall back to defaults.
type Config struct {
	TopK         int
	HistoryLimit int
	Truncate     TruncatePolicy // nil keeps all ranked chunks
}

// NewAssembler creates an Assembler. logger nil means slog.Default().
func NewAssembler(index Searcher, history HistoryStore, generator Generator, cfg Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	return &Assembler{
		index:     index,
		history:   history,
		generator: generator,
		logger:    logger,

		topK:         cfg.TopK,
		historyLimit: cfg.HistoryLimit,
		truncate:     cfg.Truncate,
	}
}

// Answer answers question within a session: ranks the corpus, assembles the
// prompt with prior turns, calls the generation provider and persists both
// the question and the answer as turns. The returned turn is always a
// coherent assistant answer; provider failures degrade to FallbackAnswer and
// an empty retrieval degrades to NoContextAnswer, never a raw error.
func (a *Assembler) Answer(ctx context.Context, sessionID uuid.UUID, question string) (corpus.Turn, error) {
	results, err := a.index.Search(ctx, question, retrieval.WithTopK(a.topK))
	if err != nil {
		return corpus.Turn{}, fmt.Errorf("retrieval failed: %w", err)
	}
	if a.truncate != nil {
		results = a.truncate(results)
	}

	history, err := a.history.History(ctx, sessionID, a.historyLimit)
	if err != nil {
		return corpus.Turn{}, fmt.Errorf("failed to load history: %w", err)
	}

	var text string
	if len(results) == 0 {
		text = NoContextAnswer
	} else {
		messages := BuildMessages(question, results, history)
		text, err = a.generator.Generate(ctx, messages)
		if err != nil {
			a.logger.Warn("generation failed, serving fallback answer", "error", err)
			text = FallbackAnswer
		}
	}

	userTurn := corpus.Turn{Role: corpus.RoleUser, Content: question, CreatedAt: time.Now()}
	assistantTurn := corpus.Turn{Role: corpus.RoleAssistant, Content: text, CreatedAt: time.Now()}

	if err := a.history.AppendTurn(ctx, sessionID, userTurn); err != nil {
		return corpus.Turn{}, fmt.Errorf("failed to persist question: %w", err)
	}
	if err := a.history.AppendTurn(ctx, sessionID, assistantTurn); err != nil {
		return corpus.Turn{}, fmt.Errorf("failed to persist answer: %w", err)
	}

	return assistantTurn, nil
}

// BuildMessages combines the fixed system instructions, the prior turns in
// chronological order, and the new question with its context block into the
// provider's message sequence.
func BuildMessages(question string, results []retrieval.Result, history []corpus.Turn) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+2)
	messages = append(messages, ai.NewSystemMessage(ai.NewTextPart(systemInstructions)))

	for _, turn := range history {
		switch turn.Role {
		case corpus.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}

	var b strings.Builder
	b.WriteString("Documentation excerpts:\n\n")
	b.WriteString(ContextBlock(results))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(b.String())))

	return messages
}

// ContextBlock renders ranked chunks as provenance-tagged excerpts, in rank
// order, with an inline image marker when the chunk references one.
func ContextBlock(results []retrieval.Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "From %s:\n%s", r.Chunk.Metadata.Path, r.Chunk.Content)
		if r.Chunk.Metadata.HasImage {
			fmt.Fprintf(&b, "\n[Image: %s - %s]", r.Chunk.Metadata.ImageURL, r.Chunk.Metadata.ImageAlt)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
