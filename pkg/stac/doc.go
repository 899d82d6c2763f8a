// Package stac defines the catalog documents exchanged during replication:
// items, the feature collection pages that carry them, navigation links and
// the destination collection.
//
// Items are treated as opaque JSON objects. Only the "id" member is read;
// the rest of the document is forwarded byte for byte.
package stac
