// Automod component for caching verdicts (as JSON strings) with a per-entry TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The decision engine caches positive verdicts briefly and clean verdicts for longer, and
// purges entries when moderators ban, unban, or approve content from a user.
package cachestore
