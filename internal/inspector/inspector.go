// Package inspector derives candidate CSS selectors from an HTML snapshot.
// When the target application ships a UI revision that breaks the
// configured selector profile, an operator feeds a saved page snapshot and
// a known item title in, and gets selector suggestions for the new markup
// out.
package inspector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Suggestion is one candidate selector with the matched node's text.
type Suggestion struct {
	Selector string
	Text     string
}

// Suggest returns selector candidates for nodes whose text contains the
// given fragment, innermost matches first. Matching is case-insensitive.
func Suggest(htmlSource, textFragment string) ([]Suggestion, error) {
	if strings.TrimSpace(textFragment) == "" {
		return nil, fmt.Errorf("text fragment is required")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSource))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	needle := strings.ToLower(textFragment)
	var suggestions []Suggestion
	seen := map[string]struct{}{}

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if !strings.Contains(strings.ToLower(text), needle) {
			return
		}
		// Skip nodes whose match comes entirely from a child; the child
		// visit produces the tighter suggestion.
		if childrenContain(sel, needle) {
			return
		}

		selector := cssPath(sel)
		if selector == "" {
			return
		}
		if _, dup := seen[selector]; dup {
			return
		}
		seen[selector] = struct{}{}
		suggestions = append(suggestions, Suggestion{Selector: selector, Text: text})
	})

	return suggestions, nil
}

func childrenContain(sel *goquery.Selection, needle string) bool {
	found := false
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		if strings.Contains(strings.ToLower(child.Text()), needle) {
			found = true
		}
	})
	return found
}

// cssPath builds a selector from the node up to the nearest anchor: an id,
// a classed ancestor, or body.
func cssPath(sel *goquery.Selection) string {
	var parts []string

	for current := sel; current.Length() > 0; current = current.Parent() {
		node := current.Get(0)
		if node.Type != html.ElementNode {
			break
		}
		tag := node.Data
		if tag == "html" || tag == "body" {
			break
		}

		step := tag
		if id, ok := current.Attr("id"); ok && id != "" {
			parts = append([]string{"#" + id}, parts...)
			return strings.Join(parts, " > ")
		}
		if class, ok := current.Attr("class"); ok && strings.TrimSpace(class) != "" {
			step += "." + strings.Join(strings.Fields(class), ".")
			parts = append([]string{step}, parts...)
			// A classed ancestor is a good enough anchor.
			if len(parts) > 1 {
				return strings.Join(parts, " > ")
			}
			continue
		}
		parts = append([]string{step}, parts...)
	}

	return strings.Join(parts, " > ")
}
