package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an HTML blob with its parse tree built lazily. A blob that
// fails to parse still supports the raw-text strategies.
type Document struct {
	raw    string
	root   *html.Node
	parsed bool
}

// NewDocument wraps raw HTML or plain text.
func NewDocument(raw string) *Document {
	return &Document{raw: raw}
}

// Raw returns the original blob.
func (d *Document) Raw() string {
	return d.raw
}

// Root returns the parse tree, or nil if the blob could not be parsed.
func (d *Document) Root() *html.Node {
	if !d.parsed {
		d.parsed = true
		root, err := html.Parse(strings.NewReader(d.raw))
		if err == nil {
			d.root = root
		}
	}
	return d.root
}

// Text returns the rendered text of the document: every text node,
// trimmed, joined by single spaces. Script and style contents are skipped.
func (d *Document) Text() string {
	root := d.Root()
	if root == nil {
		return d.raw
	}

	var parts []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return false
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		return true
	})
	return strings.Join(parts, " ")
}

// Elements returns every element with the given tag, in document order.
func (d *Document) Elements(tag atom.Atom) []*html.Node {
	root := d.Root()
	if root == nil {
		return nil
	}

	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = append(found, n)
		}
		return true
	})
	return found
}

// Attr returns the value of the named attribute of n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// walk visits n and its descendants depth first. Returning false from
// visit skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}
