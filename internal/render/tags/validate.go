package tags

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Issue is one structural problem found by ValidateTags.
type Issue struct {
	// Line is 1-based, or 0 when the issue concerns the document as a whole.
	Line    int
	Message string
}

func (i Issue) String() string {
	if i.Line == 0 {
		return i.Message
	}
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

type factRef struct {
	line     int
	depth    int
	name     string
	context  string
	unit     string
	decimals string
	numeric  bool
	value    strings.Builder
}

// ValidateTags runs advisory structural checks over a tag document, either
// an XML instance or inline XHTML, and returns every issue found. It checks
// the XML declaration, the root element, that every element is closed, and
// that facts reference declared contexts and units. It is not a schema
// validator; a nil result only means none of these checks failed.
func ValidateTags(data []byte) []Issue {
	var (
		issues   []Issue
		stack    []xml.Name
		root     *xml.Name
		rootDone bool
		sawDecl  bool
		sawToken bool
		header   bool
		contexts = map[string]bool{}
		units    = map[string]bool{}
		facts    []*factRef
		open     []*factRef
	)
	d := xml.NewDecoder(bytes.NewReader(data))
	line := func() int {
		l, _ := d.InputPos()
		return l
	}
	report := func(l int, format string, args ...any) {
		issues = append(issues, Issue{Line: l, Message: fmt.Sprintf(format, args...)})
	}

	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report(line(), "malformed markup: %v", err)
			break
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				if sawToken {
					report(line(), "XML declaration is not at the start of the document")
				}
				sawDecl = true
			}
		case xml.StartElement:
			switch {
			case root == nil:
				name := t.Name
				root = &name
				if !isRoot(name) {
					report(line(), "unexpected root element <%s>; want <xbrli:xbrl> or <html>", qualified(name))
				}
			case rootDone:
				report(line(), "element <%s> after the root element", qualified(t.Name))
			}
			stack = append(stack, t.Name)

			if t.Name.Space == "ix" && t.Name.Local == "header" {
				header = true
			}
			if id := attr(t, "", "id"); id != "" {
				switch t.Name.Local {
				case "context":
					if contexts[id] {
						report(line(), "duplicate context id %q", id)
					}
					contexts[id] = true
				case "unit":
					units[id] = true
				}
			}
			if ref := attr(t, "", "contextRef"); ref != "" || isInlineFact(t.Name) {
				f := &factRef{
					line:     line(),
					depth:    len(stack),
					name:     qualified(t.Name),
					context:  ref,
					unit:     attr(t, "", "unitRef"),
					decimals: attr(t, "", "decimals"),
					numeric:  attr(t, "", "unitRef") != "" || (t.Name.Space == "ix" && t.Name.Local == "nonFraction"),
				}
				if isInlineFact(t.Name) {
					f.name = attr(t, "", "name")
				}
				facts = append(facts, f)
				open = append(open, f)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				report(line(), "closing </%s> without an open element", qualified(t.Name))
				continue
			}
			top := stack[len(stack)-1]
			if top != t.Name {
				report(line(), "closing </%s> does not match open <%s>", qualified(t.Name), qualified(top))
				// Resynchronize on the nearest matching open element, if any.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == t.Name {
						stack = stack[:i+1]
						break
					}
				}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				rootDone = true
			}
			for len(open) > 0 && open[len(open)-1].depth > len(stack) {
				open = open[:len(open)-1]
			}
		case xml.CharData:
			if len(open) > 0 {
				open[len(open)-1].value.Write(t)
			}
			if root == nil || rootDone {
				if s := strings.TrimSpace(string(t)); s != "" {
					report(line(), "text %q outside the root element", abbreviate(s))
				}
			}
		}
		sawToken = true
	}

	if !sawDecl {
		report(0, "missing XML declaration")
	}
	if root == nil {
		report(0, "missing root element")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		report(0, "element <%s> is not closed", qualified(stack[i]))
	}
	if root != nil && root.Local == "html" && !header {
		report(0, "inline document has no ix:header")
	}

	for _, f := range facts {
		switch {
		case f.context == "":
			report(f.line, "fact %s has no contextRef", f.name)
		case !contexts[f.context]:
			report(f.line, "fact %s references undeclared context %q", f.name, f.context)
		}
		if !f.numeric {
			continue
		}
		switch {
		case f.unit == "":
			report(f.line, "numeric fact %s has no unitRef", f.name)
		case !units[f.unit]:
			report(f.line, "fact %s references undeclared unit %q", f.name, f.unit)
		}
		if f.decimals == "" {
			report(f.line, "numeric fact %s has no decimals", f.name)
		}
		if _, err := decimal.NewFromString(strings.TrimSpace(f.value.String())); err != nil {
			report(f.line, "numeric fact %s has non-numeric value %q", f.name, abbreviate(f.value.String()))
		}
	}
	return issues
}

func isRoot(n xml.Name) bool {
	return (n.Space == "xbrli" && n.Local == "xbrl") || (n.Space == "" && n.Local == "html")
}

func isInlineFact(n xml.Name) bool {
	return n.Space == "ix" && (n.Local == "nonFraction" || n.Local == "nonNumeric")
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func attr(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// abbreviate keeps the first 40 runes of s.
func abbreviate(s string) string {
	const limit = 40
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}
