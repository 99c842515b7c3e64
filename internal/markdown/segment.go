package markdown

import (
	"regexp"
	"strings"
)

// DefaultShortDocThreshold is the input length below which segmentation is
// bypassed entirely. Short documents do not benefit from splitting and risk
// losing surrounding context when retrieved piecemeal.
const DefaultShortDocThreshold = 600

// Section is a contiguous region of a document produced during segmentation.
// Sections are transient: they exist between segmentation and chunk building
// and are never persisted directly.
type Section struct {
	Heading string // heading text without the leading '#' run; empty for headingless sections
	Level   int    // 1-6 when Heading is set, 0 otherwise
	Text    string // full section text, heading line included
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6}) +\S`)

	// {% hint style="info" %} ... {% endhint %} and friends. The close marker
	// must name the same directive as the open marker.
	calloutOpenRe  = regexp.MustCompile(`\{%-?\s*([a-zA-Z]+)`)
	calloutCloseRe = regexp.MustCompile(`\{%-?\s*end([a-zA-Z]+)`)

	// A table header separator such as | --- | :---: |.
	tableSeparatorRe = regexp.MustCompile(`\|?\s*:?-{2,}:?\s*\|`)
)

// Segment splits Markdown text into heading-aligned sections using the
// default short-document threshold. See SegmentWithThreshold.
func Segment(text string) []Section {
	return SegmentWithThreshold(text, DefaultShortDocThreshold)
}

// SegmentWithThreshold splits Markdown text into an ordered list of sections.
//
// The scanner walks the input line by line, tracking three mutually exclusive
// protected modes (fenced code, callout directive, table run). Outside
// protected modes, a heading line closes the current section and opens a new
// one carrying the heading text and level; the heading line itself belongs to
// the new section. Inside protected modes every line is appended verbatim and
// heading detection is suppressed.
//
// Inputs shorter than shortDoc are returned unsegmented as a single section.
// Blank input returns nil.
func SegmentWithThreshold(text string, shortDoc int) []Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if len(text) < shortDoc {
		heading, level := leadingHeading(text)
		return []Section{{Heading: heading, Level: level, Text: text}}
	}

	var (
		sections []Section
		current  Section
		lines    []string

		inFence   bool
		inCallout bool
		callout   string // directive name that must close the callout
		inTable   bool
	)

	flush := func() {
		current.Text = strings.Join(lines, "\n")
		if strings.TrimSpace(current.Text) != "" {
			sections = append(sections, current)
		}
		current = Section{}
		lines = nil
	}

	for line := range strings.Lines(text) {
		line = strings.TrimSuffix(line, "\n")
		trimmed := strings.TrimSpace(line)

		switch {
		case inFence:
			lines = append(lines, line)
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
			}
			continue

		case inCallout:
			lines = append(lines, line)
			if m := calloutCloseRe.FindStringSubmatch(line); m != nil && m[1] == callout {
				inCallout = false
			}
			continue

		case inTable:
			if strings.Contains(line, "|") {
				lines = append(lines, line)
				continue
			}
			inTable = false
			// Fall through to normal handling for this line.
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			inFence = true
			lines = append(lines, line)

		case isCalloutOpen(line):
			inCallout = true
			callout = calloutOpenRe.FindStringSubmatch(line)[1]
			lines = append(lines, line)

		case strings.Contains(line, "|") && tableSeparatorRe.MatchString(line):
			inTable = true
			lines = append(lines, line)

		case headingRe.MatchString(line):
			flush()
			marks, rest, _ := strings.Cut(trimmed, " ")
			current.Heading = strings.TrimSpace(rest)
			current.Level = len(marks)
			lines = append(lines, line)

		default:
			lines = append(lines, line)
		}
	}
	flush()

	return sections
}

// isCalloutOpen reports whether line opens a callout directive. A close
// marker ({% endhint %}) also matches the open pattern, so it is excluded
// explicitly; a stray close marker outside a callout is treated as plain text.
func isCalloutOpen(line string) bool {
	return calloutOpenRe.MatchString(line) && !calloutCloseRe.MatchString(line)
}

// leadingHeading returns the heading of the first non-blank line, if that
// line is a heading. Used to label short documents that bypass segmentation.
func leadingHeading(text string) (string, int) {
	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\n"))
		if trimmed == "" {
			continue
		}
		if headingRe.MatchString(trimmed) {
			marks, rest, _ := strings.Cut(trimmed, " ")
			return strings.TrimSpace(rest), len(marks)
		}
		return "", 0
	}
	return "", 0
}
