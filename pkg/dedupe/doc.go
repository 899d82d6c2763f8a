// Package dedupe records which items have already been written to a
// destination collection, so that a rerun after a partial failure can skip
// them instead of creating duplicates.
//
// State lives in Redis as one set per destination collection:
//
//	siphon:seen:<destination collection URL>
//
// Membership is only recorded after a successful write. A crash between the
// write and the record can still produce a single duplicate on rerun.
package dedupe
