package stac

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// RelNext is the link relation PageCursor follows.
const RelNext = "next"

// Link is a navigation link attached to a page.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Page is one feature collection returned by the source items endpoint.
// Features are kept raw so that a single malformed item does not fail the
// whole page.
type Page struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
	Links    []Link            `json:"links,omitempty"`
}

// NextHref returns the href of the first "next" link, if any.
func (p *Page) NextHref() (string, bool) {
	for _, l := range p.Links {
		if l.Rel == RelNext && l.Href != "" {
			return l.Href, true
		}
	}
	return "", false
}

// ResolveNext returns the absolute URL of the next page. Relative hrefs are
// resolved against pageURL; absolute hrefs are returned verbatim.
func (p *Page) ResolveNext(pageURL string) (string, bool, error) {
	href, ok := p.NextHref()
	if !ok {
		return "", false, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false, fmt.Errorf("parse next link %q: %w", href, err)
	}
	if ref.IsAbs() {
		return href, true, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	return base.ResolveReference(ref).String(), true, nil
}
