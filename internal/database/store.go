// Package database provides the durable string key-value stores backing the
// guide cache. Implementations are interchangeable; callers degrade from
// sqlite to a file-per-key store to memory-only when a backend is unavailable.
package database

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	Close() error
}
