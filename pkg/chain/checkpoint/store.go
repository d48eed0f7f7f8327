// Package checkpoint persists chain snapshots so a suspended chain can be
// resumed by another process.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists snapshots keyed by chain ID and tag.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot for a chain under tag.
	// Overwrites if a snapshot for (chainID, tag) already exists; the
	// overwritten snapshot becomes the most recent one.
	Save(chainID, tag string, data []byte) error

	// Load retrieves the most recently saved snapshot of a chain.
	// Returns ErrNotFound if the chain has no snapshots.
	Load(chainID string) ([]byte, error)

	// LoadTag retrieves the snapshot saved under tag.
	// Returns ErrNotFound if it doesn't exist.
	LoadTag(chainID, tag string) ([]byte, error)

	// List returns all snapshots of a chain, ordered by sequence.
	// Returns empty slice (not error) if the chain has none.
	List(chainID string) ([]Info, error)

	// Chains returns the IDs of every chain with at least one snapshot.
	Chains() ([]string, error)

	// Delete removes a specific snapshot.
	// Returns nil if it doesn't exist.
	Delete(chainID, tag string) error

	// DeleteChain removes all snapshots of a chain.
	DeleteChain(chainID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the snapshot.
type Info struct {
	ChainID   string
	Tag       string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
