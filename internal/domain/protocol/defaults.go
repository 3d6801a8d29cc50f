package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed defaults.json
var defaultSnapshotJSON []byte

// DefaultSnapshot decodes the snapshot compiled into the binary. It is served
// until a cached or remote snapshot replaces it.
func DefaultSnapshot() (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(defaultSnapshotJSON, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode bundled snapshot: %w", err)
	}
	return s, nil
}
