package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"

	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/tuning"
)

// Stats reports queue pressure of an index backend.
type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropConfigTotal   uint64 `json:"drop_config_total,omitempty"`

	FlushFailTotal   uint64 `json:"flush_fail_total,omitempty"`
	PendingDropTotal uint64 `json:"pending_drop_total,omitempty"`
}

func (s Stats) DroppedTotal() uint64 {
	return s.DropTickTotal + s.DropAuditTotal + s.DropSnapshotTotal + s.DropConfigTotal + s.PendingDropTotal
}

type dropCounters struct {
	tick     atomic.Uint64
	audit    atomic.Uint64
	snapshot atomic.Uint64
	config   atomic.Uint64
}

func (d *dropCounters) stats(depth, capacity int) Stats {
	return Stats{
		QueueDepth:        depth,
		QueueCapacity:     capacity,
		DropTickTotal:     d.tick.Load(),
		DropAuditTotal:    d.audit.Load(),
		DropSnapshotTotal: d.snapshot.Load(),
		DropConfigTotal:   d.config.Load(),
	}
}

type configRow struct {
	name   string
	digest string
	data   []byte
}

func configRows(r *rules.Rules, tune tuning.Tuning) ([]configRow, error) {
	var rows []configRow
	if r != nil {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, configRow{name: "rules:" + r.Name, digest: r.Digest(), data: b})
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	rows = append(rows, configRow{name: "tuning", digest: hex.EncodeToString(sum[:]), data: b})
	return rows, nil
}
