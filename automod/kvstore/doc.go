// Automod component for small pieces of shared state: expiring flags, counters, and
// time-ordered sets.
//
// Includes an interface and implementations using redis and in-process memory. Queues,
// idempotency markers, enforcement history, and per-user counters are all built on this
// interface, so a single redis database holds all coordination state between processes.
package kvstore
