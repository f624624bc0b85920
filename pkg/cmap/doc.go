// Package cmap provides a concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex. Shard selection uses murmur3 so that cache keys with a
// long shared prefix (method and base URL) still distribute evenly.
//
// Usage:
//
//	m := cmap.New[*Entry]()
//	m.Set("GET_http://api/clusters_{}", entry)
//	val, ok := m.Get("GET_http://api/clusters_{}")
//
// Range and DeleteFunc lock one shard at a time, so they observe a view
// that may interleave with concurrent writers.
package cmap
