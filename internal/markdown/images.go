package markdown

import "regexp"

// ImageRef is an image reference extracted from Markdown content.
type ImageRef struct {
	URL string
	Alt string
}

// ![alt](url "optional title")
var imageRe = regexp.MustCompile(`!\[([^\]]*)\]\(\s*(\S+?)(?:\s+"[^"]*")?\s*\)`)

// ExtractImages returns all image references in content, in document order.
// Duplicate URLs are collapsed to their first occurrence.
func ExtractImages(content string) []ImageRef {
	matches := imageRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	refs := make([]ImageRef, 0, len(matches))
	for _, m := range matches {
		if seen[m[2]] {
			continue
		}
		seen[m[2]] = true
		refs = append(refs, ImageRef{URL: m[2], Alt: m[1]})
	}
	return refs
}
