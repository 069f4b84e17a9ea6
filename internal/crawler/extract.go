package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// extraction is the per-page output of Extract.
type extraction struct {
	// title is the text of the first <title> element.
	title string

	// metaDescription is the content of <meta name="description">.
	metaDescription string

	// links are the absolute outbound URLs in document order, each at
	// most once. Cross-page deduplication belongs to the frontier.
	links []string
}

// Extract parses an HTML body and pulls out the title, the meta
// description, and the outbound links resolved against base.
//
// Design decision: We use golang.org/x/net/html rather than regex
// because:
//  1. It correctly handles the malformed HTML common on the web.
//  2. Provides a proper DOM-like structure to walk.
//  3. More maintainable than complex regex patterns.
func Extract(base *url.URL, body []byte) (title, metaDescription string, links []string, err error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", nil, err
	}

	ex := &extraction{links: make([]string, 0)}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			processElement(n, base, ex, seen)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return ex.title, ex.metaDescription, ex.links, nil
}

// processElement handles one HTML element node.
func processElement(n *html.Node, base *url.URL, ex *extraction, seen map[string]struct{}) {
	switch n.Data {
	case "title":
		if ex.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			ex.title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		href := getAttr(n, "href")
		resolved := resolveLink(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		ex.links = append(ex.links, resolved)

	case "meta":
		if ex.metaDescription != "" {
			return
		}
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property") // OpenGraph pages use property
		}
		if strings.EqualFold(name, "description") || strings.EqualFold(name, "og:description") {
			ex.metaDescription = strings.TrimSpace(getAttr(n, "content"))
		}
	}
}

// resolveLink resolves an href against the base URL, dropping pseudo
// links and bare fragments. Returns "" for anything unfetchable.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	// Fragments address positions within a page, not pages.
	resolved.Fragment = ""
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
