package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/stac"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_pages_fetched_total",
		Help: "Total number of source pages fetched",
	})

	itemsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_items_received_total",
		Help: "Total number of items received from source pages",
	})
)

// Done is returned by Cursor.Next when the sequence is exhausted.
var Done = errors.New("pagination: no more items")

// ErrNotFeatureCollection indicates a page whose type is not FeatureCollection.
var ErrNotFeatureCollection = errors.New("page is not a FeatureCollection")

// PageFetcher is the interface a client must implement to fetch a single page.
type PageFetcher interface {
	// GetJSON fetches url and decodes the response body into v.
	GetJSON(ctx context.Context, url string, v any) error
}

// ItemsURL builds the items endpoint of a collection below an API root,
// <root>/collections/<collectionID>/items, optionally asking for pageSize
// items per page.
func ItemsURL(root, collectionID string, pageSize int) (string, error) {
	if collectionID == "" {
		return "", fmt.Errorf("collection id is required")
	}

	u, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("parse source url %q: %w", root, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("source url %q is not absolute", root)
	}

	u = u.JoinPath("collections", collectionID, "items")
	if pageSize > 0 {
		q := u.Query()
		q.Set("limit", strconv.Itoa(pageSize))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Cursor is a forward-only reader over a chain of item pages.
//
// Its state is the unread remainder of the current page plus the URL of the
// next page. Once the next URL is gone the cursor is exhausted for good; once
// a fetch fails the same error is returned on every later call.
type Cursor struct {
	fetcher PageFetcher
	logger  zerolog.Logger

	// pending is the next page to fetch; empty when there is none
	pending string
	// pageURL is the page the buffer was read from
	pageURL string
	items   []rawItem
	pages   int
	err     error
}

type rawItem struct {
	index int
	data  json.RawMessage
}

// NewCursor creates a cursor that starts reading at startURL.
func NewCursor(fetcher PageFetcher, startURL string) *Cursor {
	return &Cursor{
		fetcher: fetcher,
		pending: startURL,
		logger:  logging.NewLogger("page-cursor"),
	}
}

// Pages returns the number of non-empty pages fetched so far.
func (c *Cursor) Pages() int {
	return c.pages
}

// Next returns the next item.
//
// It returns Done when the sequence is exhausted and a *stac.ItemDecodeError
// for a malformed item; in that case the item is consumed and the cursor
// stays usable. Any other error is a failure to fetch or decode a page and is
// final.
func (c *Cursor) Next(ctx context.Context) (stac.Item, error) {
	if c.err != nil {
		return stac.Item{}, c.err
	}

	if len(c.items) == 0 {
		if err := c.fill(ctx); err != nil {
			c.err = err
			return stac.Item{}, err
		}
	}

	raw := c.items[0]
	c.items = c.items[1:]

	item, err := stac.DecodeItem(raw.data)
	if err != nil {
		return stac.Item{}, &stac.ItemDecodeError{Index: raw.index, PageURL: c.pageURL, Err: err}
	}
	return item, nil
}

// fill fetches the pending page into the buffer. It returns Done when there
// is nothing more to read.
func (c *Cursor) fill(ctx context.Context) error {
	if c.pending == "" {
		return Done
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	pageURL := c.pending
	c.logger.Debug().Str("url", pageURL).Msg("Fetching page")

	var page stac.Page
	if err := c.fetcher.GetJSON(ctx, pageURL, &page); err != nil {
		return fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	if page.Type != "" && page.Type != "FeatureCollection" {
		return fmt.Errorf("decode page %s: %w (type %q)", pageURL, ErrNotFeatureCollection, page.Type)
	}

	if len(page.Features) == 0 {
		if href, ok := page.NextHref(); ok {
			c.logger.Debug().
				Str("url", pageURL).
				Str("next", href).
				Msg("Empty page carries a next link, not following")
		}
		c.pending = ""
		return Done
	}

	next, ok, err := page.ResolveNext(pageURL)
	if err != nil {
		return fmt.Errorf("decode page %s: %w", pageURL, err)
	}
	if ok && next == pageURL {
		c.logger.Warn().Str("url", pageURL).Msg("Page links to itself as next, stopping after it")
		ok = false
	}

	c.items = make([]rawItem, len(page.Features))
	for i, f := range page.Features {
		c.items[i] = rawItem{index: i, data: f}
	}
	c.pageURL = pageURL
	c.pages++
	if ok {
		c.pending = next
	} else {
		c.pending = ""
	}

	pagesFetchedTotal.Inc()
	itemsReceivedTotal.Add(float64(len(page.Features)))

	c.logger.Debug().
		Str("url", pageURL).
		Int("page", c.pages).
		Int("items", len(page.Features)).
		Bool("has_next", ok).
		Msg("Page fetched")

	return nil
}
