// Package source fetches raw documentation from a repository host.
//
// The retrieval core never talks to GitHub directly: this package resolves a
// configured repository to (path, content, images) tuples which the ingest
// package consumes. Individual unreadable files are skipped and counted; one
// bad file never aborts a sync.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/koopa0/docent/internal/ingest"
	"github.com/koopa0/docent/internal/markdown"
)

// maxFileSize skips files too large to chunk sensibly (GitHub also stops
// inlining blob content above 1MB).
const maxFileSize = 1024 * 1024

// ErrNotConfigured indicates no documentation repository is configured.
var ErrNotConfigured = errors.New("documentation source not configured")

// Config identifies the documentation tree to fetch.
type Config struct {
	Owner  string
	Repo   string
	Branch string // empty uses the repository default branch
	Path   string // subtree to restrict to, e.g. "docs"; empty fetches the whole tree
	Token  string // optional; unauthenticated access works for public repos with lower rate limits
}

// GitHub fetches Markdown documentation files from a GitHub repository.
type GitHub struct {
	client *gh.Client
	cfg    Config
	logger *slog.Logger
}

// NewGitHub creates a fetcher for the configured repository.
func NewGitHub(cfg Config, logger *slog.Logger) *GitHub {
	if logger == nil {
		logger = slog.Default()
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &GitHub{
		client: gh.NewClient(httpClient),
		cfg:    cfg,
		logger: logger,
	}
}

// FetchAll lists the repository tree and fetches every Markdown file under
// the configured path, returning ingestion-ready documents with their image
// references extracted.
func (g *GitHub) FetchAll(ctx context.Context) ([]ingest.Document, error) {
	branch := g.cfg.Branch
	if branch == "" {
		repo, _, err := g.client.Repositories.Get(ctx, g.cfg.Owner, g.cfg.Repo)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repository: %w", err)
		}
		branch = repo.GetDefaultBranch()
	}

	tree, _, err := g.client.Git.GetTree(ctx, g.cfg.Owner, g.cfg.Repo, branch, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list repository tree: %w", err)
	}

	var docs []ingest.Document
	skipped := 0
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !g.wantsFile(entry.GetPath()) {
			continue
		}
		if entry.GetSize() > maxFileSize {
			g.logger.Warn("skipping oversized file", "path", entry.GetPath(), "size", entry.GetSize())
			skipped++
			continue
		}

		content, err := g.fetchContent(ctx, entry.GetPath(), branch)
		if err != nil {
			g.logger.Warn("failed to fetch file, skipping", "path", entry.GetPath(), "error", err)
			skipped++
			continue
		}

		docs = append(docs, ingest.Document{
			Path:      entry.GetPath(),
			Content:   content,
			SourceURL: g.fileURL(branch, entry.GetPath()),
			Images:    markdown.ExtractImages(content),
		})
	}

	g.logger.Info("fetched documentation files",
		"repo", g.cfg.Owner+"/"+g.cfg.Repo,
		"branch", branch,
		"files", len(docs),
		"skipped", skipped)

	return docs, nil
}

// fetchContent retrieves one file's decoded content.
func (g *GitHub) fetchContent(ctx context.Context, filePath, ref string) (string, error) {
	content, _, _, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, filePath,
		&gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("get contents: %w", err)
	}
	if content == nil {
		return "", fmt.Errorf("path %q is a directory", filePath)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return decoded, nil
}

// wantsFile reports whether filePath is a Markdown file under the configured
// subtree.
func (g *GitHub) wantsFile(filePath string) bool {
	if g.cfg.Path != "" && !strings.HasPrefix(filePath, strings.TrimSuffix(g.cfg.Path, "/")+"/") {
		return false
	}
	switch strings.ToLower(path.Ext(filePath)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

func (g *GitHub) fileURL(branch, filePath string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", g.cfg.Owner, g.cfg.Repo, branch, filePath)
}
