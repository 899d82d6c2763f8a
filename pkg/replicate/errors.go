package replicate

import (
	"errors"
	"fmt"
)

// ErrTooManyFailures is wrapped into the WriteError that ends a ModeContinue
// run once the write circuit breaker opens.
var ErrTooManyFailures = errors.New("too many consecutive write failures")

// ConfigError reports unusable run input. It is always raised before any
// network activity.
type ConfigError struct {
	Input  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// ProvisionError reports a failure to create the destination collection.
type ProvisionError struct {
	URL          string
	CollectionID string
	Err          error
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision collection %q at %s: %v", e.CollectionID, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// ReadError reports a failure to fetch or decode a source page.
type ReadError struct {
	Err error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("read source: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to create an item at the destination.
type WriteError struct {
	ItemID string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write item %q to %s: %v", e.ItemID, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *WriteError) Unwrap() error {
	return e.Err
}
