// Package pagination reads STAC item collections page by page.
//
// STAC APIs return items as GeoJSON feature collections and chain pages
// together with a link whose rel is "next". A Cursor follows that chain
// lazily: a page is only requested once every item of the previous page has
// been handed out.
//
// Example usage:
//
//	start, _ := pagination.ItemsURL("https://earth-search.example/v1", "sentinel-2-l2a", 100)
//	cursor := pagination.NewCursor(httpClient, start)
//	for {
//		item, err := cursor.Next(ctx)
//		if errors.Is(err, pagination.Done) {
//			break
//		}
//		...
//	}
//
// The cursor:
//   - Fetches one page at a time, strictly in next-link order
//   - Stops at the first empty page, even if it still carries a next link
//   - Reports malformed items individually as *stac.ItemDecodeError
//   - Cannot be rewound; build a new Cursor to read from the start again
package pagination
