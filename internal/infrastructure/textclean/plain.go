// Package textclean turns scraped page fragments into plain chunk text.
package textclean

import (
	"html"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Plain strips markup and collapses whitespace. Script and style bodies are
// dropped. Text without markup is only unescaped and collapsed.
func Plain(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(html.UnescapeString(s))
	}

	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			if z.Err() == io.EOF {
				return collapse(b.String())
			}
			return collapse(html.UnescapeString(s))
		case nethtml.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style || a == atom.Noscript {
				skipDepth++
			}
			if isBlock(a) {
				b.WriteByte(' ')
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style || a == atom.Noscript) && skipDepth > 0 {
				skipDepth--
			}
			if isBlock(a) {
				b.WriteByte(' ')
			}
		case nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBlock(atom.Lookup(name)) {
				b.WriteByte(' ')
			}
		case nethtml.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Blockquote, atom.Pre, atom.Hr:
		return true
	default:
		return false
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
