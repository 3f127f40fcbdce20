// Package storage provides the two client-side storage tiers used by the
// session subsystem: a durable tier that survives restarts and a scoped
// tier that lives only as long as the process.
package storage

// KV is a minimal key/value contract shared by both tiers. Callers that
// cannot tolerate failures are expected to absorb the returned errors and
// degrade to "value absent".
type KV interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	// Set stores or overwrites the value for key.
	Set(key, value string) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
}
