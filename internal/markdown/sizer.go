package markdown

import (
	"fmt"
	"strings"
)

// Default size bounds for resized sections, in bytes of UTF-8 text.
// MaxSectionSize is calibrated to stay comfortably inside common embedding
// model input limits; MinSectionSize avoids near-empty chunks that embed to
// noise.
const (
	DefaultMinSectionSize = 150
	DefaultMaxSectionSize = 1500
)

// placeholder marks an extracted protected block during paragraph splitting.
// NUL bytes cannot appear in valid Markdown text, so the token never collides
// with document content.
func placeholder(i int) string {
	return fmt.Sprintf("\x00block:%d\x00", i)
}

// Resize enforces size bounds on segmented sections.
//
// Two passes: sections longer than maxSize are split into paragraph-aligned
// pieces (protected blocks kept intact), then headed sections shorter than
// minSize are merged into their structural successors. A single indivisible
// paragraph or protected block longer than maxSize is kept whole rather than
// truncated.
//
// The concatenation of all output section texts reproduces the input modulo
// whitespace normalization.
func Resize(sections []Section, minSize, maxSize int) []Section {
	if len(sections) == 0 {
		return nil
	}

	split := make([]Section, 0, len(sections))
	for _, s := range sections {
		if len(s.Text) <= maxSize {
			split = append(split, s)
			continue
		}
		split = append(split, splitSection(s, maxSize)...)
	}

	return mergeSmall(split, minSize, maxSize)
}

// splitSection breaks one oversized section into pieces of at most maxSize,
// aligned on paragraph boundaries. Protected blocks are swapped for opaque
// placeholders before splitting and restored verbatim afterwards, so a fence
// or table is never severed even when a paragraph boundary falls inside it.
func splitSection(s Section, maxSize int) []Section {
	masked, blocks := extractProtected(s.Text)

	paragraphs := strings.Split(masked, "\n\n")

	// Restore placeholders per paragraph so greedy packing sees real sizes.
	restored := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		restored = append(restored, restoreProtected(p, blocks))
	}
	if len(restored) == 0 {
		return []Section{s}
	}

	var (
		pieces []Section
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		pieces = append(pieces, Section{Heading: s.Heading, Level: s.Level, Text: buf.String()})
		buf.Reset()
	}

	for _, para := range restored {
		// An indivisible paragraph larger than maxSize becomes its own
		// oversized piece. Correctness over strict size compliance.
		if len(para) > maxSize {
			flush()
			pieces = append(pieces, Section{Heading: s.Heading, Level: s.Level, Text: para})
			continue
		}
		if buf.Len() > 0 && buf.Len()+2+len(para) > maxSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()

	return pieces
}

// mergeSmall merges undersized sections with their structural successors.
//
// A headed section below minSize absorbs the next section while that section
// has no heading of its own or a strictly deeper heading level (a
// sub-section); absorption chains until the accumulated text reaches minSize,
// a sibling/shallower heading is hit, or absorbing the next section would
// push the result past maxSize. A headingless section below minSize only
// accumulates adjacent headingless sections.
func mergeSmall(sections []Section, minSize, maxSize int) []Section {
	var out []Section

	i := 0
	for i < len(sections) {
		cur := sections[i]
		j := i + 1
		for len(cur.Text) < minSize && j < len(sections) &&
			canAbsorb(cur, sections[j]) &&
			len(cur.Text)+2+len(sections[j].Text) <= maxSize {
			cur.Text = cur.Text + "\n\n" + sections[j].Text
			j++
		}
		out = append(out, cur)
		i = j
	}

	return out
}

// canAbsorb is the merge predicate. It is deliberately isolated: the
// stricter variant (merge only headingless successors) is a one-line change
// and both behaviors preserve content.
func canAbsorb(cur, next Section) bool {
	if cur.Heading == "" {
		return next.Heading == ""
	}
	return next.Heading == "" || next.Level > cur.Level
}

// extractProtected replaces every protected block in text with a placeholder
// token and returns the masked text plus the extracted blocks in order.
func extractProtected(text string) (string, []string) {
	var (
		blocks []string
		outs   []string
		block  []string

		inFence   bool
		inCallout bool
		callout   string
		inTable   bool
	)

	endBlock := func() {
		outs = append(outs, placeholder(len(blocks)))
		blocks = append(blocks, strings.Join(block, "\n"))
		block = nil
	}

	for line := range strings.Lines(text) {
		line = strings.TrimSuffix(line, "\n")
		trimmed := strings.TrimSpace(line)

		switch {
		case inFence:
			block = append(block, line)
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				endBlock()
			}
			continue

		case inCallout:
			block = append(block, line)
			if m := calloutCloseRe.FindStringSubmatch(line); m != nil && m[1] == callout {
				inCallout = false
				endBlock()
			}
			continue

		case inTable:
			if strings.Contains(line, "|") {
				block = append(block, line)
				continue
			}
			inTable = false
			endBlock()
			// Fall through to normal handling for this line.
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			inFence = true
			block = append(block, line)

		case isCalloutOpen(line):
			inCallout = true
			callout = calloutOpenRe.FindStringSubmatch(line)[1]
			block = append(block, line)

		case strings.Contains(line, "|") && tableSeparatorRe.MatchString(line):
			inTable = true
			block = append(block, line)

		default:
			outs = append(outs, line)
		}
	}
	// Unterminated block at end of input: keep it protected as-is.
	if len(block) > 0 {
		endBlock()
	}

	return strings.Join(outs, "\n"), blocks
}

// restoreProtected substitutes placeholder tokens back with their blocks.
func restoreProtected(text string, blocks []string) string {
	for i, b := range blocks {
		text = strings.Replace(text, placeholder(i), b, 1)
	}
	return text
}
