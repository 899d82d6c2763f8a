// Package replicate copies the items of a source STAC collection into a
// destination collection.
//
// A run has three strictly sequential steps:
//
//  1. ParseDestination splits <collections-base>/<collection-id>; a malformed
//     destination fails before any network call.
//  2. Provisioner creates the destination collection with POST <collections-base>.
//  3. Replicator drains a pagination.Cursor over the source items and POSTs
//     each item to <collections-base>/<collection-id>/items, one at a time.
//
// Fatal failures are reported as *ConfigError, *ProvisionError, *ReadError or
// *WriteError. In ModeAbort the first failed write ends the run; in
// ModeContinue failures are logged and the run goes on until a run of
// consecutive failures trips the write circuit breaker.
//
// Replication is not idempotent. Running twice against the same destination
// creates every item twice, unless a SeenStore is configured.
package replicate
