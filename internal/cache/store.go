package cache

import "time"

// Store is a keyed store with per-entry expiry. It replaces ad-hoc
// package-level maps (rate-limit buckets, workflow status) with something
// injectable and bounded. The in-memory LRU serves single-process
// deployments; a shared key-value store can satisfy it for several processes.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	// GetOrSet returns the live value for key, storing create() first if absent.
	GetOrSet(key string, ttl time.Duration, create func() V) V
	Delete(key string)
	Len() int
}
