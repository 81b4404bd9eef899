package tags

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Namespaces shared by instance and inline documents.
const (
	NamespaceXBRLI  = "http://www.xbrl.org/2003/instance"
	NamespaceLink   = "http://www.xbrl.org/2003/linkbase"
	NamespaceXLink  = "http://www.w3.org/1999/xlink"
	NamespaceUTR    = "http://www.xbrl.org/2009/utr"
	NamespaceInline = "http://www.xbrl.org/2013/inlineXBRL"
	NamespaceXHTML  = "http://www.w3.org/1999/xhtml"
)

type xmlInstance struct {
	XMLName   xml.Name     `xml:"xbrli:xbrl"`
	Attrs     []xml.Attr   `xml:",any,attr"`
	SchemaRef xmlSchemaRef `xml:"link:schemaRef"`
	Contexts  []xmlContext `xml:"xbrli:context"`
	Units     []xmlUnit    `xml:"xbrli:unit"`
	Facts     []xmlFact
}

type xmlSchemaRef struct {
	Type string `xml:"xlink:type,attr"`
	Href string `xml:"xlink:href,attr"`
}

type xmlContext struct {
	ID         string        `xml:"id,attr"`
	Identifier xmlIdentifier `xml:"xbrli:entity>xbrli:identifier"`
	StartDate  string        `xml:"xbrli:period>xbrli:startDate"`
	EndDate    string        `xml:"xbrli:period>xbrli:endDate"`
}

type xmlIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type xmlUnit struct {
	ID      string `xml:"id,attr"`
	Measure string `xml:"xbrli:measure"`
}

type xmlFact struct {
	XMLName    xml.Name
	ContextRef string `xml:"contextRef,attr"`
	UnitRef    string `xml:"unitRef,attr,omitempty"`
	Decimals   string `xml:"decimals,attr,omitempty"`
	Value      string `xml:",chardata"`
}

func namespaceAttrs(doc *Document, inline bool) []xml.Attr {
	var attrs []xml.Attr
	if inline {
		attrs = append(attrs,
			xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: NamespaceXHTML},
			xml.Attr{Name: xml.Name{Local: "xmlns:ix"}, Value: NamespaceInline},
		)
	}
	return append(attrs,
		xml.Attr{Name: xml.Name{Local: "xmlns:xbrli"}, Value: NamespaceXBRLI},
		xml.Attr{Name: xml.Name{Local: "xmlns:link"}, Value: NamespaceLink},
		xml.Attr{Name: xml.Name{Local: "xmlns:xlink"}, Value: NamespaceXLink},
		xml.Attr{Name: xml.Name{Local: "xmlns:utr"}, Value: NamespaceUTR},
		xml.Attr{Name: xml.Name{Local: "xmlns:" + doc.Taxonomy.Prefix}, Value: doc.Taxonomy.Namespace},
	)
}

func schemaRef(doc *Document) xmlSchemaRef {
	return xmlSchemaRef{Type: "simple", Href: doc.Taxonomy.Namespace + ".xsd"}
}

func xmlContexts(doc *Document) []xmlContext {
	out := make([]xmlContext, 0, len(doc.Contexts))
	for _, c := range doc.Contexts {
		out = append(out, xmlContext{
			ID:         c.ID,
			Identifier: xmlIdentifier{Scheme: c.Entity.Scheme, Value: c.Entity.Identifier},
			StartDate:  c.Start.Format(time.DateOnly),
			EndDate:    c.End.Format(time.DateOnly),
		})
	}
	return out
}

func xmlUnits(doc *Document) []xmlUnit {
	out := make([]xmlUnit, 0, len(doc.Units))
	for _, u := range doc.Units {
		out = append(out, xmlUnit(u))
	}
	return out
}

// WriteXML writes doc as an XML instance document. The document is
// reconciled first and nothing is written when it does not reconcile.
func WriteXML(w io.Writer, doc *Document) error {
	if err := Reconcile(doc); err != nil {
		return err
	}

	inst := xmlInstance{
		Attrs:     namespaceAttrs(doc, false),
		SchemaRef: schemaRef(doc),
		Contexts:  xmlContexts(doc),
		Units:     xmlUnits(doc),
	}
	for _, f := range doc.Facts {
		xf := xmlFact{XMLName: xml.Name{Local: f.Name}, ContextRef: f.ContextRef, Value: f.Value()}
		if f.Numeric() {
			xf.UnitRef = f.UnitRef
			xf.Decimals = strconv.Itoa(f.Decimals)
		}
		inst.Facts = append(inst.Facts, xf)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing xml declaration: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(inst); err != nil {
		return fmt.Errorf("encoding tag document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding tag document: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
