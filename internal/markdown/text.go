// Package markdown converts markdown documents into plain text that reads well
// when spoken.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const (
	blockSeparator = "\n\n"
	lineSeparator  = "\n"
)

// ToText strips markdown syntax from source and returns the readable text.
//
// Blocks are separated by a blank line, list items and table rows by a single
// newline, soft line breaks inside a paragraph are kept. Raw HTML, thematic
// breaks and link destinations are dropped; image alt text and code are kept.
// Malformed input never fails, whatever goldmark parses is rendered.
func ToText(source string) string {
	src := []byte(source)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	w := &writer{source: src}
	w.block(doc)

	return strings.TrimSpace(w.buf.String())
}

type writer struct {
	source    []byte
	buf       strings.Builder
	listDepth int
	// nextSep overrides the separator written before the next block.
	nextSep string
}

// open writes the separator that precedes a new leaf block.
func (w *writer) open() {
	sep := blockSeparator
	if w.listDepth > 0 {
		sep = lineSeparator
	}
	if w.nextSep != "" {
		sep = w.nextSep
		w.nextSep = ""
	}
	if w.buf.Len() > 0 {
		w.buf.WriteString(sep)
	}
}

func (w *writer) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.HTMLBlock, *ast.ThematicBreak:
		return

	case *ast.List:
		if w.listDepth == 0 {
			w.nextSep = blockSeparator
		}
		w.listDepth++
		w.children(n)
		w.listDepth--

	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		w.open()
		w.inline(n)

	case *ast.CodeBlock, *ast.FencedCodeBlock:
		w.open()
		w.lines(n)

	case *east.Table:
		w.open()
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			if row != n.FirstChild() {
				w.buf.WriteString(lineSeparator)
			}
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				if cell != row.FirstChild() {
					w.buf.WriteString(" ")
				}
				w.inline(cell)
			}
		}

	default:
		// Document, Blockquote, ListItem and anything unknown.
		w.children(n)
	}
}

func (w *writer) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *writer) lines(n ast.Node) {
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(w.source))
	}
	w.buf.WriteString(strings.TrimRight(code.String(), "\n"))
}

func (w *writer) inline(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			w.buf.Write(unescape(c.Segment.Value(w.source)))
			if c.SoftLineBreak() || c.HardLineBreak() {
				w.buf.WriteString(lineSeparator)
			}
		case *ast.String:
			w.buf.Write(c.Value)
		case *ast.CodeSpan:
			for t := c.FirstChild(); t != nil; t = t.NextSibling() {
				if txt, ok := t.(*ast.Text); ok {
					w.buf.Write(txt.Segment.Value(w.source))
				}
			}
		case *ast.AutoLink:
			w.buf.Write(c.Label(w.source))
		case *ast.RawHTML:
			continue
		default:
			// Emphasis, Link, Image (alt text), Strikethrough.
			w.inline(c)
		}
	}
}

func unescape(b []byte) []byte {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	return util.ResolveEntityNames(b)
}
