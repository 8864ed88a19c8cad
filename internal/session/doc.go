// Package session owns live ratchet state. The registry maps opaque
// 16-byte handles to per-peer session state; callers never hold references
// into the interior.
//
// Concurrency: each entry carries its own mutex, held for the duration of
// one atomic state transition. Operations on distinct handles proceed in
// parallel; the registry map itself is touched only briefly for lookup,
// insert and remove.
package session
