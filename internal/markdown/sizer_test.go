package markdown

import (
	"strings"
	"testing"
)

func TestResizeEmpty(t *testing.T) {
	if got := Resize(nil, 150, 1500); got != nil {
		t.Errorf("Resize(nil) = %v, want nil", got)
	}
}

func TestResizeSizeBounds(t *testing.T) {
	const (
		minSize = 100
		maxSize = 400
	)

	var paragraphs []string
	for range 10 {
		paragraphs = append(paragraphs, repeatPadding(150))
	}
	big := Section{Heading: "Big", Level: 1, Text: "# Big\n\n" + strings.Join(paragraphs, "\n\n")}

	out := Resize([]Section{big}, minSize, maxSize)
	if len(out) < 2 {
		t.Fatalf("oversized section should be split, got %d pieces", len(out))
	}
	for i, s := range out {
		if len(s.Text) > maxSize {
			t.Errorf("piece %d exceeds max size: %d > %d", i, len(s.Text), maxSize)
		}
		if s.Heading != "Big" || s.Level != 1 {
			t.Errorf("piece %d lost its heading label: %q level %d", i, s.Heading, s.Level)
		}
	}
}

func TestResizeKeepsFitSectionsUntouched(t *testing.T) {
	s := Section{Heading: "Fine", Level: 2, Text: "## Fine\n\n" + repeatPadding(300)}
	out := Resize([]Section{s}, 150, 1500)

	if len(out) != 1 || out[0].Text != s.Text {
		t.Errorf("section within bounds should pass through unchanged")
	}
}

func TestResizeIndivisibleParagraphKeptWhole(t *testing.T) {
	// One paragraph with no blank lines, longer than max.
	para := repeatPadding(900)
	s := Section{Text: para}

	out := Resize([]Section{s}, 100, 400)
	if len(out) != 1 {
		t.Fatalf("indivisible paragraph should stay whole, got %d pieces", len(out))
	}
	if out[0].Text != para {
		t.Errorf("indivisible paragraph must not be truncated")
	}
}

func TestResizeNeverSplitsFence(t *testing.T) {
	var codeLines []string
	for range 40 {
		codeLines = append(codeLines, "    some_code_statement(with, arguments)")
	}
	fence := "```go\n" + strings.Join(codeLines, "\n") + "\n```"
	text := "# API\n\nintro paragraph here\n\n" + fence + "\n\nclosing remark"
	s := Section{Heading: "API", Level: 1, Text: text}

	out := Resize([]Section{s}, 100, 500)

	fenceCount := 0
	for _, piece := range out {
		if strings.Contains(piece.Text, fence) {
			fenceCount++
		}
		opens := strings.Count(piece.Text, "```")
		if opens%2 != 0 {
			t.Errorf("piece has unbalanced fence markers:\n%s", piece.Text)
		}
	}
	if fenceCount != 1 {
		t.Errorf("fence should appear intact in exactly one piece, found %d", fenceCount)
	}
}

func TestResizeNeverSplitsTable(t *testing.T) {
	var rows []string
	rows = append(rows, "| Name | Description |", "| --- | --- |")
	for range 30 {
		rows = append(rows, "| field | a reasonably long description of this field |")
	}
	table := strings.Join(rows, "\n")
	text := "# Schema\n\nintro\n\n" + table + "\n\ntail paragraph"

	out := Resize([]Section{{Heading: "Schema", Level: 1, Text: text}}, 100, 500)

	found := 0
	for _, piece := range out {
		if strings.Contains(piece.Text, table[strings.Index(table, "| --- |"):]) {
			found++
		}
	}
	if found != 1 {
		t.Errorf("table body should survive splitting intact, found in %d pieces", found)
	}
}

func TestResizeMergesSmallHeadedSections(t *testing.T) {
	// A tiny headed section absorbs its headingless successor.
	sections := []Section{
		{Heading: "Intro", Level: 1, Text: "# Intro"},
		{Text: repeatPadding(200)},
	}
	out := Resize(sections, 150, 1500)

	if len(out) != 1 {
		t.Fatalf("expected merge into 1 section, got %d", len(out))
	}
	if out[0].Heading != "Intro" {
		t.Errorf("merged section should keep the absorbing heading, got %q", out[0].Heading)
	}
	if !strings.Contains(out[0].Text, "# Intro") {
		t.Errorf("merged text should contain the original heading line")
	}
}

func TestResizeMergesDeeperSubsections(t *testing.T) {
	sections := []Section{
		{Heading: "Install", Level: 1, Text: "# Install\n\nshort"},
		{Heading: "Linux", Level: 2, Text: "## Linux\n\n" + repeatPadding(200)},
	}
	out := Resize(sections, 150, 1500)

	if len(out) != 1 {
		t.Fatalf("parent below min should absorb deeper subsection, got %d sections", len(out))
	}
	if out[0].Heading != "Install" || out[0].Level != 1 {
		t.Errorf("merged section keeps the parent label, got %q level %d", out[0].Heading, out[0].Level)
	}
}

func TestResizeMergeRespectsMaxSize(t *testing.T) {
	// A headed section just under min must not absorb a near-max successor:
	// the merged text would blow past maxSize without being an indivisible
	// paragraph or protected block.
	huge := repeatPadding(744) + "\n\n" + repeatPadding(744)
	sections := []Section{
		{Heading: "A", Level: 1, Text: "# A\n\n" + repeatPadding(138)},
		{Text: huge},
	}
	out := Resize(sections, 150, 1500)

	if len(out) != 2 {
		t.Fatalf("merge past maxSize must be refused, got %d sections", len(out))
	}
	for i, s := range out {
		if len(s.Text) > 1500 {
			t.Errorf("section %d exceeds max after merge pass: %d bytes", i, len(s.Text))
		}
	}

	// The same shapes merge when the combined text fits.
	sections = []Section{
		{Heading: "A", Level: 1, Text: "# A\n\n" + repeatPadding(138)},
		{Text: repeatPadding(744)},
	}
	out = Resize(sections, 150, 1500)
	if len(out) != 1 {
		t.Errorf("merge within maxSize should proceed, got %d sections", len(out))
	}
}

func TestResizeNeverMergesSiblingOrShallower(t *testing.T) {
	tests := []struct {
		name string
		next Section
	}{
		{"sibling", Section{Heading: "Usage", Level: 1, Text: "# Usage\n\n" + repeatPadding(200)}},
		{"shallower", Section{Heading: "Top", Level: 1, Text: "# Top\n\n" + repeatPadding(200)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := []Section{
				{Heading: "Config", Level: 2, Text: "## Config\n\ntiny"},
				tt.next,
			}
			out := Resize(sections, 150, 1500)
			if len(out) != 2 {
				t.Errorf("sibling/shallower heading must not be absorbed, got %d sections", len(out))
			}
		})
	}
}

func TestResizeHeadinglessOnlyMergesHeadingless(t *testing.T) {
	sections := []Section{
		{Text: "tiny preamble"},
		{Heading: "First", Level: 1, Text: "# First\n\n" + repeatPadding(200)},
	}
	out := Resize(sections, 150, 1500)

	if len(out) != 2 {
		t.Fatalf("headingless section must not absorb a headed one, got %d sections", len(out))
	}
}

// A short overview followed by a deeper installation section merges, while
// the sibling that follows stays separate and ranks on its own.
func TestResizeOverviewInstallScenario(t *testing.T) {
	sections := []Section{
		{Heading: "Getting Started", Level: 1, Text: "# Getting Started\n\nWelcome."},
		{Heading: "Installation", Level: 2, Text: "## Installation\n\nRun the install script to install the package. " + repeatPadding(150)},
		{Heading: "Requirements", Level: 1, Text: "# Requirements\n\nA computer. " + repeatPadding(150)},
	}

	out := Resize(sections, 150, 1500)
	if len(out) != 2 {
		t.Fatalf("expected 2 sections after merge, got %d", len(out))
	}
	if !strings.Contains(out[0].Text, "## Installation") {
		t.Errorf("installation should merge into the short overview")
	}
	if out[1].Heading != "Requirements" {
		t.Errorf("requirements stays separate, got heading %q", out[1].Heading)
	}
}

func TestResizeRoundTrip(t *testing.T) {
	var paragraphs []string
	for range 8 {
		paragraphs = append(paragraphs, repeatPadding(120))
	}
	text := "# Doc\n\n" + strings.Join(paragraphs, "\n\n") +
		"\n\n```\ncode here\n```\n\n| a | b |\n| --- | --- |\n| 1 | 2 |"

	in := SegmentWithThreshold(text, 1)
	out := Resize(in, 100, 300)

	var parts []string
	for _, s := range out {
		parts = append(parts, s.Text)
	}
	if normalizeWS(strings.Join(parts, "\n")) != normalizeWS(text) {
		t.Errorf("resize must preserve content modulo whitespace")
	}
}

func TestCanAbsorb(t *testing.T) {
	tests := []struct {
		name      string
		cur, next Section
		want      bool
	}{
		{"headed absorbs headingless", Section{Heading: "A", Level: 1}, Section{}, true},
		{"headed absorbs deeper", Section{Heading: "A", Level: 1}, Section{Heading: "B", Level: 2}, true},
		{"headed rejects sibling", Section{Heading: "A", Level: 2}, Section{Heading: "B", Level: 2}, false},
		{"headed rejects shallower", Section{Heading: "A", Level: 3}, Section{Heading: "B", Level: 1}, false},
		{"headingless absorbs headingless", Section{}, Section{}, true},
		{"headingless rejects headed", Section{}, Section{Heading: "B", Level: 4}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canAbsorb(tt.cur, tt.next); got != tt.want {
				t.Errorf("canAbsorb(%+v, %+v) = %v, want %v", tt.cur, tt.next, got, tt.want)
			}
		})
	}
}
