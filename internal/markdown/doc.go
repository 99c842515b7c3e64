// Package markdown segments raw Markdown documentation into retrieval-sized
// sections while preserving structural integrity.
//
// The package is a pure text transform with two stages:
//
//	Segment(text)              - heading-aware splitting into Sections
//	Resize(sections, min, max) - split oversized / merge undersized sections
//
// Structural constructs that must never be severed across section boundaries
// are tracked as "protected" regions:
//
//   - fenced code blocks (``` delimited)
//   - callout/hint directives ({% hint %} ... {% endhint %})
//   - pipe tables (a contiguous pipe-line run begun by a header separator)
//
// Heading detection is suppressed inside protected regions, and the sizer
// extracts them to opaque placeholders before paragraph splitting so that a
// code block or table always lands whole inside exactly one output section.
//
// Guarantee: Resize(Segment(text)) preserves the full input content modulo
// whitespace normalization. No characters are dropped, only redistributed.
package markdown
