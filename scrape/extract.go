package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxImages caps how many image URLs one page contributes.
const maxImages = 8

var stripTags = bluemonday.StrictPolicy()

// ExtractPage parses raw HTML and pulls out the page title, the readable
// main content, and up to maxImages image URLs (resolved against pageURL).
//
// Content selection prefers semantic landmarks (main, article) and falls
// back to the whole body with boilerplate subtrees (nav, header, footer,
// aside, script, style) removed.
func ExtractPage(raw []byte, pageURL string) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{
		Title:  pageTitle(doc),
		Images: pageImages(doc, pageURL),
	}

	landmarks := findLandmarks(doc)
	var parts []string
	for _, n := range landmarks {
		if t := collectText(n); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		if body := findByTag(doc, atom.Body); body != nil {
			if t := collectText(body); t != "" {
				parts = append(parts, t)
			}
		}
	}
	res.Content = CleanText(strings.Join(parts, "\n\n"))
	return res, nil
}

// CleanText strips any residual markup and collapses whitespace runs.
// Safe to call on search snippets as well as extracted page text.
func CleanText(s string) string {
	s = stripTags.Sanitize(s)
	s = html.UnescapeString(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func pageTitle(doc *html.Node) string {
	// og:title wins over <title>: retailers stuff SEO noise into <title>.
	if og := metaContent(doc, "og:title"); og != "" {
		return strings.TrimSpace(og)
	}
	if n := findByTag(doc, atom.Title); n != nil {
		return strings.TrimSpace(collectText(n))
	}
	return ""
}

func pageImages(doc *html.Node, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]struct{})
	var images []string

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		if !strings.HasPrefix(src, "http") {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		if len(images) < maxImages {
			images = append(images, src)
		}
	}

	if og := metaContent(doc, "og:image"); og != "" {
		add(og)
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(images) >= maxImages {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			add(attrValue(n, "src"))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return images
}

func metaContent(doc *html.Node, property string) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			if attrValue(n, "property") == property || attrValue(n, "name") == property {
				found = attrValue(n, "content")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// attrValue returns the value of the named attribute, "" when absent.
func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func findLandmarks(doc *html.Node) []*html.Node {
	var nodes []*html.Node
	for _, tag := range []atom.Atom{atom.Main, atom.Article} {
		nodes = append(nodes, findAllByTag(doc, tag)...)
	}
	return nodes
}

func findByTag(root *html.Node, tag atom.Atom) *html.Node {
	all := findAllByTag(root, tag)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func findAllByTag(root *html.Node, tag atom.Atom) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			nodes = append(nodes, n)
			return // no nested matches
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return nodes
}

func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Script, atom.Style, atom.Noscript:
		return true
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isBoilerplate(n) {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
