// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package medline parses the archive's citation XML into normalized corpus
// documents. Parsing is streaming: one record element is materialized at a
// time, so memory stays bounded by the import batch size rather than the
// file size.
package medline

import (
	"encoding/xml"
	"strings"
)

// Node is a concrete mixed-content XML element. Titles and abstracts carry
// text interleaved with inline formatting children (<sup>, <i>, ...), and
// the text that follows a child inside its parent (the tail) is part of the
// parent's content. Struct tags cannot express that, so Node captures the
// full shape with its own token walk.
type Node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     string
	tail     string
	children []*Node
}

// Tag returns the element's local name.
func (n *Node) Tag() string { return n.name.Local }

// Text returns the character data before the first child element.
func (n *Node) Text() string { return n.text }

// Tail returns the character data that followed this element inside its
// parent.
func (n *Node) Tail() string { return n.tail }

// Children returns the child elements in document order.
func (n *Node) Children() []*Node { return n.children }

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// UnmarshalXML consumes the element opened by start, recording leading
// text, children, and each child's tail.
func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.name = start.Name
	n.attrs = start.Attr

	var last *Node
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if last == nil {
				n.text += string(t)
			} else {
				last.tail += string(t)
			}
		case xml.StartElement:
			child := &Node{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.children = append(n.children, child)
			last = child
		case xml.EndElement:
			return nil
		}
	}
}

// inlineMarkup maps inline formatting tags to their Markdown delimiters.
// Unknown tags pass their text through unwrapped.
var inlineMarkup = map[string]string{
	"b":   "**",
	"i":   "*",
	"sup": "^",
	"sub": "~",
	"u":   "__",
}

// Flatten renders a mixed-content node to a single Markdown string: the
// node's direct text, then each child flattened recursively and wrapped per
// its tag, then the child's tail. A text-only extraction would silently
// drop everything after the first nested tag.
func Flatten(n *Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(n.text)
	for _, child := range n.children {
		inner := Flatten(child)
		if wrap, ok := inlineMarkup[child.Tag()]; ok && inner != "" {
			sb.WriteString(wrap)
			sb.WriteString(inner)
			sb.WriteString(wrap)
		} else {
			sb.WriteString(inner)
		}
		sb.WriteString(child.tail)
	}
	return sb.String()
}
