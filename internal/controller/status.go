package controller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crocme10/area-net/internal/diagram"
	"github.com/crocme10/area-net/internal/graph"
	"github.com/crocme10/area-net/internal/netid"
)

// peerStatus is one row of the peers.json array (spec §4.6).
type peerStatus struct {
	Label         string `json:"label"`
	RemoteAddress string `json:"remote_address"`
	Direction     string `json:"direction"`
	RTTMicros     *int64 `json:"rtt_us"`
	State         string `json:"state"`
}

func writeStatus(path string, self netid.NodeId, records []PeerRecord) error {
	rows := make([]peerStatus, 0, len(records))
	for _, rec := range records {
		row := peerStatus{
			Label:     string(rec.Remote.Label),
			Direction: rec.Direction.String(),
			State:     rec.State.String(),
		}
		if !rec.Remote.Listen.IsZero() {
			row.RemoteAddress = rec.Remote.Listen.String()
		} else if !rec.TargetAddr.IsZero() {
			row.RemoteAddress = rec.TargetAddr.String()
		}
		if rec.HasRTT {
			micros := rec.RTT.Microseconds()
			row.RTTMicros = &micros
		}
		rows = append(rows, row)
	}

	body, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal peer status: %w", err)
	}
	return atomicWriteFile(path, body)
}

func writeDiagram(path string, renderer diagram.Renderer, self netid.NodeId, snap graph.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".diagram-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp diagram file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := renderer.Render(tmp, self, snap); err != nil {
		tmp.Close()
		return fmt.Errorf("render diagram: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp diagram file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp diagram file: %w", err)
	}
	return nil
}

// atomicWriteFile writes body to path by writing to a sibling temp
// file and renaming over the destination, so a status-monitor reader
// never observes a partially written peers.json. There is no
// third-party library in the pack for this; os.CreateTemp+os.Rename is
// the idiomatic stdlib sequence and the operation is too small to
// justify a dependency.
func atomicWriteFile(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp status file: %w", err)
	}
	return nil
}
