// Package engine implements the offline-first synchronization engine.
//
// The engine sits between the presentation layer and the two stores: the
// always-available local store and the sometimes-available remote service.
// Every domain read tries remote-first with local fallback; every domain
// write commits locally first and treats the remote call as best-effort,
// queuing the mutation for replay when the service is unreachable.
//
// # Connectivity
//
// The engine holds a single observed online/offline flag. It is updated
// only as a side effect of real call outcomes: any Ok or Rejected response
// flips it online (the network stack produced a real answer), any
// Unreachable outcome flips it offline. There is no separate heartbeat.
//
// # Replay
//
// Queued operations are replayed by a single dedicated worker goroutine.
// A replay pass drains the whole queue and resends operations in strict
// insertion order; the first Unreachable outcome stops the pass and
// re-inserts the unresolved remainder at the front of the queue. Passes
// are triggered by offline-to-online transitions, by an optional periodic
// interval, and by explicit reconciliation requests. At most one pass runs
// at a time; mutations arriving mid-pass enqueue normally and are picked
// up by the next pass.
//
// # Caller results
//
// Writes are acknowledged as soon as the local commit succeeds. A remote
// rejection is surfaced as a soft failure (see SoftError): the local copy
// stands and nothing is queued, because retrying a policy decision cannot
// succeed. Only local store faults and missing cached data are hard
// failures.
package engine
