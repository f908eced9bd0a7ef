// Package keyring abstracts the durable key-value storage used to persist
// the authenticated identity between process runs. On desktop builds the
// implementation is typically backed by the OS credential service; this
// package ships an in-memory ring for tests, an encrypted flat-file ring,
// and a SQLite ring under drivers/sqlite.
package keyring

import "errors"

// ErrNotFound reports that no entry exists under the requested name.
var ErrNotFound = errors.New("keyring: entry not found")

// Keyring stores named opaque secrets. Implementations must be safe for
// concurrent use.
type Keyring interface {
	// Get returns the value stored under name, or ErrNotFound.
	Get(name string) (string, error)

	// Set stores value under name, replacing any existing entry.
	Set(name, value string) error

	// Delete removes the entry under name. Deleting a missing entry is not
	// an error.
	Delete(name string) error
}
