package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest records how a session started, so it can be replayed from
// tick 0 without any snapshot.
type Manifest struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`

	Seed               int64 `json:"seed"`
	TickRateHz         int   `json:"tick_rate_hz"`
	AIIntervalMs       int   `json:"ai_interval_ms"`
	SnapshotEveryTicks int   `json:"snapshot_every_ticks,omitempty"`

	RulesName   string          `json:"rules_name"`
	RulesDigest string          `json:"rules_digest"`
	Rules       json.RawMessage `json:"rules"`
}

func ManifestPath(sessionDir string) string {
	return filepath.Join(sessionDir, "session.json")
}

// WriteManifest writes the manifest once; an existing manifest is kept so
// a resumed session still replays from its true start.
func WriteManifest(sessionDir string, m Manifest) (bool, error) {
	path := ManifestPath(sessionDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return false, err
	}
	if m.Version == 0 {
		m.Version = Version
	}
	// Compact keeps the rules bytes as recorded.
	b, err := json.Marshal(m)
	if err != nil {
		return false, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return false, err
	}
	return true, os.Rename(tmp, path)
}

func ReadManifest(sessionDir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(ManifestPath(sessionDir))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("session.json: %w", err)
	}
	if m.Version != Version {
		return m, fmt.Errorf("session.json: unsupported version %d", m.Version)
	}
	return m, nil
}
