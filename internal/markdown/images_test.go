package markdown

import "testing"

func TestExtractImages(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ImageRef
	}{
		{
			name:    "none",
			content: "plain text with a [link](https://example.com) but no images",
			want:    nil,
		},
		{
			name:    "single",
			content: "intro\n\n![diagram](https://example.com/d.png)\n\ntail",
			want:    []ImageRef{{URL: "https://example.com/d.png", Alt: "diagram"}},
		},
		{
			name:    "with title",
			content: `![chart](assets/chart.svg "Quarterly chart")`,
			want:    []ImageRef{{URL: "assets/chart.svg", Alt: "chart"}},
		},
		{
			name:    "empty alt",
			content: "![](img.png)",
			want:    []ImageRef{{URL: "img.png", Alt: ""}},
		},
		{
			name:    "duplicates collapsed",
			content: "![a](x.png) and ![b](x.png) and ![c](y.png)",
			want: []ImageRef{
				{URL: "x.png", Alt: "a"},
				{URL: "y.png", Alt: "c"},
			},
		},
		{
			name:    "document order",
			content: "![second](2.png)\n![first](1.png)",
			want: []ImageRef{
				{URL: "2.png", Alt: "second"},
				{URL: "1.png", Alt: "first"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractImages(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d refs, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ref %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
