package controller

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	"github.com/crocme10/area-net/internal/graph"
)

// snapshotHash digests a graph.Snapshot for the discovery loop's
// per-source dedup cache, in the style of gossip/pkg/hashing.go's
// JSON-then-sha256 digest.
func snapshotHash(snap graph.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(snap); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return string(sum[:]), nil
}
