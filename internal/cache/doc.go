// Package cache implements the in-memory memoization used by update checks.
//
// A Cache is bounded by an entry count (least recently used entries are
// evicted on write) and by a time to live (checked on read). There is no
// background sweeper: an expired entry stays resident until it is
// overwritten, invalidated or evicted by capacity.
package cache
