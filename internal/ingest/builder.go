package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/markdown"
)

// defaultSectionLabel labels chunks whose section has no heading.
const defaultSectionLabel = "content"

// buildChunks attaches file identity, provenance metadata and an embedding to
// every sized section. An embedding provider failure leaves that chunk's
// Embedding nil; the chunk is still created so one bad call never blocks
// ingestion of the rest of the document.
func (s *Service) buildChunks(ctx context.Context, fileID uuid.UUID, doc Document, sections []markdown.Section) []corpus.Chunk {
	chunks := make([]corpus.Chunk, 0, len(sections))

	for _, section := range sections {
		meta := corpus.ChunkMetadata{
			Path:         doc.Path,
			SectionLabel: section.Heading,
		}
		if meta.SectionLabel == "" {
			meta.SectionLabel = defaultSectionLabel
		}

		// First image (in file order) whose URL or alt text appears in the
		// section text becomes the chunk's primary image.
		for _, img := range doc.Images {
			if containsImage(section.Text, img) {
				meta.HasImage = true
				meta.ImageURL = img.URL
				meta.ImageAlt = img.Alt
				break
			}
		}

		embedding, err := s.embedSection(ctx, section.Text)
		if err != nil {
			s.logger.Warn("section embedding failed, chunk kept unembedded",
				"path", doc.Path, "section", meta.SectionLabel, "error", err)
			embedding = nil
		}

		chunks = append(chunks, corpus.Chunk{
			ID:          uuid.New(),
			FileID:      fileID,
			Content:     section.Text,
			Metadata:    meta,
			Embedding:   embedding,
			LastUpdated: time.Now(),
		})
	}

	return chunks
}

// embedSection runs one rate-limited embedding call.
func (s *Service) embedSection(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}

// containsImage reports whether the section text references img by URL or by
// non-empty alt text.
func containsImage(text string, img markdown.ImageRef) bool {
	if img.URL != "" && strings.Contains(text, img.URL) {
		return true
	}
	return img.Alt != "" && strings.Contains(text, img.Alt)
}
