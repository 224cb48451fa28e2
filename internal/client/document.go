package client

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const textNode = "#text"

// Node is an element in a parsed document. Children holds child elements
// only; text runs are kept alongside them in document order.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	content  []*Node
	data     string
}

func (n *Node) appendChild(c *Node) {
	n.Children = append(n.Children, c)
	n.content = append(n.content, c)
}

func (n *Node) appendText(s string) {
	if last := len(n.content) - 1; last >= 0 && n.content[last].Name == textNode {
		n.content[last].data += s
		return
	}
	n.content = append(n.content, &Node{Name: textNode, data: s})
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// Text returns the node's text content with surrounding space trimmed.
func (n *Node) Text() string {
	var b strings.Builder
	n.collect(&b)
	return strings.TrimSpace(b.String())
}

func (n *Node) collect(b *strings.Builder) {
	b.WriteString(n.data)
	for _, c := range n.content {
		c.collect(b)
	}
}

func (n *Node) find(name string, out []*Node) []*Node {
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
		out = c.find(name, out)
	}
	return out
}

// Document is a parsed HTML or XML response body.
type Document struct {
	root *Node
}

// Root returns the synthetic document node.
func (d *Document) Root() *Node { return d.root }

// Filter returns every element named name in document order.
func (d *Document) Filter(name string) []*Node {
	return d.root.find(name, nil)
}

// Title returns the text of the first title element.
func (d *Document) Title() (string, bool) {
	titles := d.Filter("title")
	if len(titles) == 0 {
		return "", false
	}
	return titles[0].Text(), true
}

// Links returns the href of every anchor.
func (d *Document) Links() []string {
	var links []string
	for _, a := range d.Filter("a") {
		if href, ok := a.Attr("href"); ok {
			links = append(links, href)
		}
	}
	return links
}

// ParseDocument parses body as XML when contentType is an XML media type
// and as HTML otherwise.
func ParseDocument(body []byte, contentType string) (*Document, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasSuffix(ct, "/xml") || strings.HasSuffix(ct, "+xml") {
		return parseXML(body)
	}
	return parseHTML(body)
}

func parseHTML(body []byte) (*Document, error) {
	top, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := &Node{Name: "#document"}
	convertHTML(top, root)
	return &Document{root: root}, nil
}

func convertHTML(src *html.Node, dst *Node) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			n := &Node{Name: c.Data, Attrs: make(map[string]string, len(c.Attr))}
			for _, a := range c.Attr {
				n.Attrs[a.Key] = a.Val
			}
			dst.appendChild(n)
			convertHTML(c, n)
		case html.TextNode:
			dst.appendText(c.Data)
		}
	}
}

func parseXML(body []byte) (*Document, error) {
	root := &Node{Name: "#document"}
	stack := []*Node{root}
	dec := xml.NewDecoder(bytes.NewReader(body))
	sawElement := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			top.appendChild(n)
			stack = append(stack, n)
			sawElement = true
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.appendText(string(t))
		}
	}
	if !sawElement {
		return nil, fmt.Errorf("parse xml: document is empty")
	}
	return &Document{root: root}, nil
}
