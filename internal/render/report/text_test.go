package report

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	doc, err := Render(context.Background(), nestedSections(), inventory(t, false), Options{Confidentiality: "Confidential"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, doc))
	out := buf.String()

	assert.Equal(t, len(doc.Pages)-1, strings.Count(out, "\f"))
	for _, p := range doc.Pages {
		assert.Contains(t, out, p.Footer.String())
	}
	assert.Contains(t, out, "1. Organizational Boundary\n==========================\n")
	assert.Contains(t, out, "1.1 Facilities\n--------------\n")
	assert.Contains(t, out, "We use the *operational control* approach.")
	assert.Contains(t, out, "  - Plants\n  - Offices\n")
	assert.Contains(t, out, "Scope 3 emissions by GHG Protocol category (tCO2e)\n#   Category")

	var tocLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "1. Organizational Boundary ...") {
			tocLine = line
		}
	}
	require.NotEmpty(t, tocLine, "no contents line for section 1")
	assert.True(t, strings.HasSuffix(tocLine, " "+strconv.Itoa(doc.TOC[0].Page)))
}

func TestWriteText_PagesPerSection(t *testing.T) {
	doc, err := Render(context.Background(), nestedSections(), inventory(t, false), Options{})
	require.NoError(t, err)

	// Every top-level section starts on a fresh page.
	for _, e := range doc.TOC {
		if e.Level != 1 {
			continue
		}
		page := doc.Pages[e.Page-1]
		require.NotEmpty(t, page.Blocks)
		assert.Equal(t, e.Number, page.Blocks[0].Number)
	}
}
