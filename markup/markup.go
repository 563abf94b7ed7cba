// Package markup parses HTML pages into a tree of elements that remember
// where they came from in the source, so callers can lift the exact inner
// markup of any element.
package markup

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// voidElements never have content or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Node is a single element of a parsed page.
type Node struct {
	Tag      string
	Attrs    []html.Attribute
	Parent   *Node
	Children []*Node

	// Byte offsets into the source: the opening tag spans [start,
	// innerStart), the content spans [innerStart, innerEnd) and the closing
	// tag ends at end.
	start, innerStart, innerEnd, end int
}

// Attr returns the value of the named attribute and whether it is present.
// When an attribute is repeated the first occurrence wins.
func (n *Node) Attr(key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(key string) bool {
	_, ok := n.Attr(key)
	return ok
}

// AttrHasPrefix reports whether the named attribute is present and starts
// with prefix.
func (n *Node) AttrHasPrefix(key, prefix string) bool {
	v, ok := n.Attr(key)
	return ok && strings.HasPrefix(v, prefix)
}

// Is reports whether the node is an element with the given tag name.
func (n *Node) Is(tag string) bool {
	return n != nil && n.Tag == tag
}

// Tree is a parsed page. Nodes are kept in document order.
type Tree struct {
	src   []byte
	root  *Node
	nodes []*Node
}

// Parse builds a tree from raw page bytes. It never fails: input the
// tokenizer cannot make sense of simply contributes no elements, so callers
// must tolerate missing nodes.
func Parse(src []byte) *Tree {
	t := &Tree{
		src:  src,
		root: &Node{innerEnd: len(src), end: len(src)},
	}

	z := html.NewTokenizer(bytes.NewReader(src))
	open := []*Node{t.root}
	offset := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		// Raw must be read before TagName/TagAttr reuse the buffer.
		rawLen := len(z.Raw())
		tokenStart := offset
		offset += rawLen

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			node := &Node{
				Tag:        string(name),
				Parent:     open[len(open)-1],
				start:      tokenStart,
				innerStart: offset,
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				node.Attrs = append(node.Attrs, html.Attribute{
					Key: string(key),
					Val: string(val),
				})
			}

			node.Parent.Children = append(node.Parent.Children, node)
			t.nodes = append(t.nodes, node)

			if tt == html.SelfClosingTagToken || voidElements[node.Tag] {
				node.innerEnd = offset
				node.end = offset
				continue
			}
			open = append(open, node)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			// Close the nearest open element with this name and everything
			// opened inside it. Stray end tags are ignored.
			for i := len(open) - 1; i > 0; i-- {
				if open[i].Tag != tag {
					continue
				}
				for j := len(open) - 1; j >= i; j-- {
					open[j].innerEnd = tokenStart
					open[j].end = offset
				}
				// Elements closed implicitly end where the explicit end tag
				// begins.
				for j := len(open) - 1; j > i; j-- {
					open[j].end = tokenStart
				}
				open = open[:i]
				break
			}
		}
	}

	// Anything still open runs to the end of the input.
	for _, n := range open[1:] {
		n.innerEnd = len(src)
		n.end = len(src)
	}

	return t
}

// Root returns the synthetic document node that parents top-level elements.
func (t *Tree) Root() *Node {
	return t.root
}

// Nodes returns every element in document order.
func (t *Tree) Nodes() []*Node {
	return t.nodes
}

// Len returns the number of elements in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Walk visits every element in document order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	for _, n := range t.nodes {
		if !fn(n) {
			return
		}
	}
}

// First returns the first element in document order that satisfies match,
// or nil.
func (t *Tree) First(match func(*Node) bool) *Node {
	for _, n := range t.nodes {
		if match(n) {
			return n
		}
	}
	return nil
}

// All returns every element that satisfies match, in document order.
func (t *Tree) All(match func(*Node) bool) []*Node {
	var found []*Node
	for _, n := range t.nodes {
		if match(n) {
			found = append(found, n)
		}
	}
	return found
}

// Text returns the source between the end of the node's opening tag and the
// start of its closing tag. Inner markup is returned verbatim; nothing is
// unescaped or stripped.
func (t *Tree) Text(n *Node) string {
	if n == nil || n.innerStart > n.innerEnd || n.innerEnd > len(t.src) {
		return ""
	}
	return string(t.src[n.innerStart:n.innerEnd])
}

// Outer returns the source of the whole element including its tags.
func (t *Tree) Outer(n *Node) string {
	if n == nil || n.start > n.end || n.end > len(t.src) {
		return ""
	}
	return string(t.src[n.start:n.end])
}

// PlainText strips markup from an HTML fragment, unescapes entities and
// collapses runs of whitespace into single spaces.
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	// Line breaks in comments are usually <br> tags with no surrounding
	// whitespace.
	doc.Find("br").ReplaceWithHtml(" ")

	return strings.Join(strings.Fields(doc.Text()), " ")
}
