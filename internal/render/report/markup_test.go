package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkup(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Block
	}{
		{name: "empty", content: "", want: nil},
		{
			name:    "lines join into one paragraph",
			content: "first line\nsecond line",
			want:    []Block{{Kind: BlockParagraph, Spans: []Span{{Text: "first line second line"}}}},
		},
		{
			name:    "blank line splits paragraphs",
			content: "one\r\n\r\ntwo",
			want: []Block{
				{Kind: BlockParagraph, Spans: []Span{{Text: "one"}}},
				{Kind: BlockParagraph, Spans: []Span{{Text: "two"}}},
			},
		},
		{
			name:    "three heading levels",
			content: "# A\n## B\n### C",
			want: []Block{
				{Kind: BlockHeading, Level: 1, Spans: []Span{{Text: "A"}}},
				{Kind: BlockHeading, Level: 2, Spans: []Span{{Text: "B"}}},
				{Kind: BlockHeading, Level: 3, Spans: []Span{{Text: "C"}}},
			},
		},
		{
			name:    "fourth level stays literal",
			content: "#### Deep",
			want:    []Block{{Kind: BlockParagraph, Spans: []Span{{Text: "#### Deep"}}}},
		},
		{
			name:    "hash without space stays literal",
			content: "#hashtag",
			want:    []Block{{Kind: BlockParagraph, Spans: []Span{{Text: "#hashtag"}}}},
		},
		{
			name:    "list with both markers",
			content: "- one\n* **two**",
			want: []Block{{Kind: BlockList, Items: [][]Span{
				{{Text: "one"}},
				{{Text: "two", Bold: true}},
			}}},
		},
		{
			name:    "list ends at paragraph",
			content: "- item\nafter",
			want: []Block{
				{Kind: BlockList, Items: [][]Span{{{Text: "item"}}}},
				{Kind: BlockParagraph, Spans: []Span{{Text: "after"}}},
			},
		},
		{
			name:    "unsupported markup passes through",
			content: "<em>x</em> [link](http://example.com) _under_",
			want:    []Block{{Kind: BlockParagraph, Spans: []Span{{Text: "<em>x</em> [link](http://example.com) _under_"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMarkup(tt.content))
		})
	}
}

func TestParseInline(t *testing.T) {
	tests := []struct {
		in   string
		want []Span
	}{
		{in: "plain", want: []Span{{Text: "plain"}}},
		{in: "a **b** c", want: []Span{{Text: "a "}, {Text: "b", Bold: true}, {Text: " c"}}},
		{in: "**all**", want: []Span{{Text: "all", Bold: true}}},
		{in: "**x** and **y**", want: []Span{{Text: "x", Bold: true}, {Text: " and "}, {Text: "y", Bold: true}}},
		{in: "a **unclosed", want: []Span{{Text: "a **unclosed"}}},
		{in: "a **** b", want: []Span{{Text: "a **** b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseInline(tt.in))
		})
	}
}
