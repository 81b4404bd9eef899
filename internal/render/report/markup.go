package report

import "strings"

// maxHeadingLevel is the deepest markup heading; deeper "#" runs stay literal.
const maxHeadingLevel = 3

// parseMarkup converts section content to blocks.
//
// The supported subset is "#", "##" and "###" headings, "- " or "* " list
// items, **bold** and paragraphs separated by blank lines. Everything else,
// including unclosed bold markers, is kept as literal text.
func parseMarkup(content string) []Block {
	var (
		blocks []Block
		para   []string
		items  [][]Span
	)
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: BlockParagraph, Spans: parseInline(strings.Join(para, " "))})
			para = nil
		}
	}
	flushList := func() {
		if len(items) > 0 {
			blocks = append(blocks, Block{Kind: BlockList, Items: items})
			items = nil
		}
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushPara()
			flushList()
			continue
		}
		if level, text := heading(trimmed); level > 0 {
			flushPara()
			flushList()
			blocks = append(blocks, Block{Kind: BlockHeading, Level: level, Spans: parseInline(text)})
			continue
		}
		if item, ok := listItem(trimmed); ok {
			flushPara()
			items = append(items, parseInline(item))
			continue
		}
		flushList()
		para = append(para, trimmed)
	}
	flushPara()
	flushList()
	return blocks
}

// heading returns the level and text of a markup heading line, or 0.
func heading(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > maxHeadingLevel || level == len(line) || line[level] != ' ' {
		return 0, ""
	}
	text := strings.TrimSpace(line[level:])
	if text == "" {
		return 0, ""
	}
	return level, text
}

func listItem(line string) (string, bool) {
	for _, marker := range []string{"- ", "* "} {
		if rest, ok := strings.CutPrefix(line, marker); ok && strings.TrimSpace(rest) != "" {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// parseInline splits text into plain and **bold** spans.
func parseInline(s string) []Span {
	var spans []Span
	for {
		open := strings.Index(s, "**")
		if open < 0 {
			break
		}
		end := strings.Index(s[open+2:], "**")
		if end <= 0 {
			break
		}
		if open > 0 {
			spans = append(spans, Span{Text: s[:open]})
		}
		spans = append(spans, Span{Text: s[open+2 : open+2+end], Bold: true})
		s = s[open+2+end+2:]
	}
	if s != "" {
		spans = append(spans, Span{Text: s})
	}
	return spans
}
