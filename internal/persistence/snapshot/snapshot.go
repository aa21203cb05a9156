package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
}

// SnapshotV1 is a complete, self-contained session state: resuming from it
// needs no other input than the rule configuration it embeds.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed               int64 `json:"seed"`
	TickRateHz         int   `json:"tick_rate_hz"`
	AIIntervalMs       int   `json:"ai_interval_ms"`
	SnapshotEveryTicks int   `json:"snapshot_every_ticks,omitempty"`

	RulesName   string `json:"rules_name"`
	RulesDigest string `json:"rules_digest"`
	// RulesJSON is the canonical JSON of the rule configuration in force.
	RulesJSON []byte `json:"rules_json"`

	// NowNanos is the simulated time reached at Header.Tick.
	NowNanos int64 `json:"now_nanos"`
	GameOver bool  `json:"game_over"`

	Entities      []EntityV1     `json:"entities"`
	NextEntityNum uint64         `json:"next_entity_num"`
	Player        PlayerV1       `json:"player"`
	Resources     map[string]int `json:"resources"`

	Counters CountersV1 `json:"counters"`
}

type EntityV1 struct {
	ID   string `json:"id"`
	Num  uint64 `json:"num"`
	Kind string `json:"kind"`
	Type string `json:"type,omitempty"`

	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Facing float64 `json:"facing"`

	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`

	AI         string `json:"ai,omitempty"`
	LastAction int64  `json:"last_action"`
	Acted      bool   `json:"acted,omitempty"`
	NextThink  int64  `json:"next_think"`

	Speed          float64 `json:"speed,omitempty"`
	ViewRange      float64 `json:"view_range,omitempty"`
	AttackRange    float64 `json:"attack_range,omitempty"`
	Damage         int     `json:"damage,omitempty"`
	AttackCooldown int64   `json:"attack_cooldown,omitempty"`

	WanderX         float64 `json:"wander_x,omitempty"`
	WanderZ         float64 `json:"wander_z,omitempty"`
	HasWanderTarget bool    `json:"has_wander_target,omitempty"`

	FollowDistance float64  `json:"follow_distance,omitempty"`
	AssignedTo     string   `json:"assigned_to,omitempty"`
	Workers        []string `json:"workers,omitempty"`
}

type PlayerV1 struct {
	EntityID          string `json:"entity_id"`
	Experience        int    `json:"experience"`
	InvulnerableUntil int64  `json:"invulnerable_until"`
	Down              bool   `json:"down"`
}

type CountersV1 struct {
	Kills    uint64 `json:"kills"`
	Hits     uint64 `json:"hits"`
	Gathers  uint64 `json:"gathers"`
	TxOK     uint64 `json:"tx_ok"`
	TxDenied uint64 `json:"tx_denied"`
}

// Path is where the snapshot for tick lives under a session directory.
func Path(sessionDir string, tick uint64) string {
	return filepath.Join(sessionDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the highest-tick snapshot under sessionDir, or "" when
// there is none.
func Latest(sessionDir string) (string, uint64, error) {
	dir := filepath.Join(sessionDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, err
	}
	type cand struct {
		tick uint64
		name string
	}
	var cands []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: n, name: name})
	}
	if len(cands) == 0 {
		return "", 0, nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick < cands[j].tick })
	last := cands[len(cands)-1]
	return filepath.Join(dir, last.name), last.tick, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
