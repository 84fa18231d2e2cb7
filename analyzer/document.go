package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Element is a single node of a parsed document
type Element interface {
	Attribute(name string) (string, bool)
	TextContent() string
}

// Document is a queryable view of parsed markup
type Document interface {
	FirstElement(tag string) (Element, bool)
	AllElements(tag string) []Element
}

// Parser turns raw markup into a Document. Implementations must tolerate
// malformed input and return an empty document rather than fail.
type Parser interface {
	Parse(html string) Document
}

// GoqueryParser parses markup with goquery
type GoqueryParser struct{}

func (GoqueryParser) Parse(html string) Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Only reachable on reader failures; treat as a page with no elements.
		return emptyDocument{}
	}
	return goqueryDocument{doc: doc}
}

type goqueryDocument struct {
	doc *goquery.Document
}

func (d goqueryDocument) FirstElement(tag string) (Element, bool) {
	sel := d.doc.Find(tag).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return goqueryElement{sel: sel}, true
}

func (d goqueryDocument) AllElements(tag string) []Element {
	sel := d.doc.Find(tag)
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, goqueryElement{sel: s})
	})
	return elements
}

type goqueryElement struct {
	sel *goquery.Selection
}

func (e goqueryElement) Attribute(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e goqueryElement) TextContent() string {
	return e.sel.Text()
}

type emptyDocument struct{}

func (emptyDocument) FirstElement(string) (Element, bool) { return nil, false }
func (emptyDocument) AllElements(string) []Element        { return nil }
