package stac

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotObject indicates an item is not a JSON object.
	ErrNotObject = errors.New("item is not a JSON object")

	// ErrMissingID indicates an item has no usable "id" member.
	ErrMissingID = errors.New("item has no string id")
)

// Item is a single catalog record. Raw holds the document exactly as it was
// received from the source.
type Item struct {
	ID  string
	Raw json.RawMessage
}

// MarshalJSON writes the original document unchanged.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return nil, fmt.Errorf("item %q: %w", i.ID, ErrNotObject)
	}
	return i.Raw, nil
}

// ItemDecodeError reports a malformed item inside an otherwise valid page.
type ItemDecodeError struct {
	// Index is the item's position within its page.
	Index int
	// PageURL is the page the item came from.
	PageURL string
	Err     error
}

// Error implements the error interface.
func (e *ItemDecodeError) Error() string {
	return fmt.Sprintf("decode item %d of %s: %v", e.Index, e.PageURL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ItemDecodeError) Unwrap() error {
	return e.Err
}

// DecodeItem validates raw as an item document and extracts its identifier.
func DecodeItem(raw json.RawMessage) (Item, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Item{}, ErrNotObject
	}

	idRaw, ok := fields["id"]
	if !ok {
		return Item{}, ErrMissingID
	}

	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil || id == "" {
		return Item{}, ErrMissingID
	}

	return Item{ID: id, Raw: raw}, nil
}
