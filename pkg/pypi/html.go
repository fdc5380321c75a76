package pypi

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// anchor is one <a> element from a simple-index page: the text is a filename
// (or project name on the root listing) and the href its link. PEP 503
// metadata travels in data-* attributes.
type anchor struct {
	text  string
	href  string
	attrs map[string]string
}

// parseAnchors extracts all anchor elements from an HTML document. A
// document with no anchors is not an error; it simply yields no data.
func parseAnchors(r io.Reader) ([]anchor, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var out []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			a := anchor{attrs: make(map[string]string)}
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					a.href = attr.Val
				} else {
					a.attrs[attr.Key] = attr.Val
				}
			}
			a.text = strings.TrimSpace(textContent(n))
			if a.text != "" {
				out = append(out, a)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
