package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current record format version.
// Increment when making breaking changes to the record structure.
const Version = 1

// Record wraps a serialized chain snapshot with the metadata needed to pick
// it back up.
type Record struct {
	Version   int             `json:"version"`
	ChainID   string          `json:"chain_id"`
	Tag       string          `json:"tag"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// NewRecord creates a record for an already-serialized snapshot.
func NewRecord(chainID, tag, status string, snapshot []byte) *Record {
	return &Record{
		Version:   Version,
		ChainID:   chainID,
		Tag:       tag,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Snapshot:  snapshot,
	}
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record and checks its version.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Version != Version {
		return nil, fmt.Errorf("record version %d, want %d", r.Version, Version)
	}
	return &r, nil
}
