package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/log"
	"github.com/koopa0/docent/internal/markdown"
	"github.com/koopa0/docent/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memCorpus is an in-memory Corpus double keyed by file path.
type memCorpus struct {
	mu      sync.Mutex
	files   map[string]uuid.UUID
	chunks  map[uuid.UUID][]corpus.Chunk
	failOn  string // path whose UpsertFile fails
	repFail string // path whose ReplaceChunksForFile fails (by fileID lookup)
}

func newMemCorpus() *memCorpus {
	return &memCorpus{
		files:  make(map[string]uuid.UUID),
		chunks: make(map[uuid.UUID][]corpus.Chunk),
	}
}

func (m *memCorpus) UpsertFile(_ context.Context, f corpus.File) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && f.Path == m.failOn {
		return uuid.Nil, errors.New("upsert failed")
	}
	id, ok := m.files[f.Path]
	if !ok {
		id = uuid.New()
		m.files[f.Path] = id
	}
	return id, nil
}

func (m *memCorpus) ReplaceChunksForFile(_ context.Context, fileID uuid.UUID, chunks []corpus.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repFail != "" && m.files[m.repFail] == fileID {
		return errors.New("replace failed")
	}
	m.chunks[fileID] = chunks
	return nil
}

func (m *memCorpus) chunksFor(path string) []corpus.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[m.files[path]]
}

// invalidations counts cache invalidation calls.
type invalidations struct {
	mu sync.Mutex
	n  int
}

func (c *invalidations) Invalidate() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *invalidations) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func doc(path, content string) Document {
	return Document{Path: path, Content: content, Images: markdown.ExtractImages(content)}
}

func TestIngestFile(t *testing.T) {
	store := newMemCorpus()
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1}, log.NewNop())

	content := "# Guide\n\n" + strings.Repeat("useful guidance text here. ", 10) +
		"\n\n# Reference\n\n" + strings.Repeat("reference material follows. ", 10)

	created, unembedded, err := svc.IngestFile(context.Background(), doc("docs/guide.md", content))
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 chunks, got %d", created)
	}
	if unembedded != 0 {
		t.Errorf("expected all chunks embedded, got %d unembedded", unembedded)
	}

	chunks := store.chunksFor("docs/guide.md")
	if len(chunks) != 2 {
		t.Fatalf("store holds %d chunks, want 2", len(chunks))
	}
	if chunks[0].Metadata.SectionLabel != "Guide" || chunks[1].Metadata.SectionLabel != "Reference" {
		t.Errorf("section labels: %q, %q", chunks[0].Metadata.SectionLabel, chunks[1].Metadata.SectionLabel)
	}
	for i, c := range chunks {
		if c.Metadata.Path != "docs/guide.md" {
			t.Errorf("chunk %d path = %q", i, c.Metadata.Path)
		}
		if len(c.Embedding) != testutil.WordEmbedderDim {
			t.Errorf("chunk %d embedding dim = %d", i, len(c.Embedding))
		}
		if c.ID == uuid.Nil || c.FileID == uuid.Nil {
			t.Errorf("chunk %d missing identity", i)
		}
	}
}

func TestIngestFileHeadinglessSectionLabel(t *testing.T) {
	store := newMemCorpus()
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1, MinSectionSize: 1}, log.NewNop())

	if _, _, err := svc.IngestFile(context.Background(), doc("n.md", "no heading, just text long enough to keep")); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	chunks := store.chunksFor("n.md")
	if len(chunks) != 1 || chunks[0].Metadata.SectionLabel != "content" {
		t.Errorf("headingless chunk should get the default label, got %+v", chunks)
	}
}

func TestIngestFileEmbedFailureDegrades(t *testing.T) {
	store := newMemCorpus()
	embedder := &testutil.WordEmbedder{FailOn: []string{"Broken"}}
	svc := NewService(store, embedder, nil, Config{ShortDocThreshold: 1}, log.NewNop())

	content := "# Good\n\n" + strings.Repeat("fine text. ", 20) +
		"\n\n# Broken\n\n" + strings.Repeat("poisoned text. ", 20)

	created, unembedded, err := svc.IngestFile(context.Background(), doc("d.md", content))
	if err != nil {
		t.Fatalf("embedding failure must not fail the file: %v", err)
	}
	if created != 2 || unembedded != 1 {
		t.Fatalf("created=%d unembedded=%d, want 2/1", created, unembedded)
	}

	chunks := store.chunksFor("d.md")
	var nilCount int
	for _, c := range chunks {
		if c.Embedding == nil {
			nilCount++
		}
	}
	if nilCount != 1 {
		t.Errorf("exactly one chunk should be unembedded, got %d", nilCount)
	}
}

func TestIngestFileImageMetadata(t *testing.T) {
	store := newMemCorpus()
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1, MinSectionSize: 1}, log.NewNop())

	content := "# Setup\n\nWire it like this:\n\n![wiring diagram](img/wiring.png)\n\n" +
		strings.Repeat("setup text. ", 20) +
		"\n\n# Teardown\n\nno images here. " + strings.Repeat("teardown text. ", 20)

	if _, _, err := svc.IngestFile(context.Background(), doc("s.md", content)); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	chunks := store.chunksFor("s.md")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	setup := chunks[0]
	if !setup.Metadata.HasImage || setup.Metadata.ImageURL != "img/wiring.png" || setup.Metadata.ImageAlt != "wiring diagram" {
		t.Errorf("setup chunk should carry its image: %+v", setup.Metadata)
	}
	if chunks[1].Metadata.HasImage {
		t.Errorf("teardown chunk has no image, metadata says otherwise")
	}
}

func TestIngestFileReplacesOldChunks(t *testing.T) {
	store := newMemCorpus()
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1, MinSectionSize: 1}, log.NewNop())

	ctx := context.Background()
	if _, _, err := svc.IngestFile(ctx, doc("r.md", "# One\n\nfirst version of this document")); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	firstID := store.files["r.md"]

	if _, _, err := svc.IngestFile(ctx, doc("r.md", "# One\n\nsecond version replaces the first")); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if store.files["r.md"] != firstID {
		t.Errorf("re-ingesting the same path must reuse the file identity")
	}
	chunks := store.chunksFor("r.md")
	if len(chunks) != 1 || !strings.Contains(chunks[0].Content, "second version") {
		t.Errorf("old chunks should be replaced wholesale, got %+v", chunks)
	}
}

func TestIngestAll(t *testing.T) {
	store := newMemCorpus()
	cache := &invalidations{}
	svc := NewService(store, &testutil.WordEmbedder{}, cache, Config{ShortDocThreshold: 1, Workers: 3}, log.NewNop())

	var docs []Document
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		docs = append(docs, doc("docs/"+name, "# "+name+"\n\n"+strings.Repeat("body text for "+name+". ", 15)))
	}

	result, err := svc.IngestAll(context.Background(), docs)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if result.FilesAdded != 5 || result.FilesFailed != 0 {
		t.Errorf("added=%d failed=%d, want 5/0", result.FilesAdded, result.FilesFailed)
	}
	if result.ChunksCreated != 5 {
		t.Errorf("chunks created = %d, want 5", result.ChunksCreated)
	}
	if cache.count() == 0 {
		t.Errorf("batch completion must invalidate the similarity cache")
	}
}

func TestIngestAllToleratesFileFailure(t *testing.T) {
	store := newMemCorpus()
	store.failOn = "docs/bad.md"
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1}, log.NewNop())

	docs := []Document{
		doc("docs/ok.md", "# OK\n\n"+strings.Repeat("fine. ", 40)),
		doc("docs/bad.md", "# Bad\n\n"+strings.Repeat("doomed. ", 40)),
		doc("docs/also-ok.md", "# Also\n\n"+strings.Repeat("fine too. ", 40)),
	}

	result, err := svc.IngestAll(context.Background(), docs)
	if err != nil {
		t.Fatalf("one bad file must not abort the batch: %v", err)
	}
	if result.FilesAdded != 2 || result.FilesFailed != 1 {
		t.Errorf("added=%d failed=%d, want 2/1", result.FilesAdded, result.FilesFailed)
	}
}

func TestIngestAllCanceledContext(t *testing.T) {
	store := newMemCorpus()
	svc := NewService(store, &testutil.WordEmbedder{}, nil, Config{ShortDocThreshold: 1}, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var docs []Document
	for i := range 20 {
		docs = append(docs, doc("docs/f"+string(rune('a'+i))+".md", "# F\n\nbody"))
	}

	_, err := svc.IngestAll(ctx, docs)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestContainsImage(t *testing.T) {
	tests := []struct {
		name string
		text string
		img  markdown.ImageRef
		want bool
	}{
		{"by url", "see ![x](a/b.png) here", markdown.ImageRef{URL: "a/b.png", Alt: "x"}, true},
		{"by alt", "the wiring diagram shows it", markdown.ImageRef{URL: "gone.png", Alt: "wiring diagram"}, true},
		{"no match", "unrelated text", markdown.ImageRef{URL: "a.png", Alt: "diagram"}, false},
		{"empty alt not matched", "any text", markdown.ImageRef{URL: "zz.png", Alt: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsImage(tt.text, tt.img); got != tt.want {
				t.Errorf("containsImage(%q, %+v) = %v, want %v", tt.text, tt.img, got, tt.want)
			}
		})
	}
}
