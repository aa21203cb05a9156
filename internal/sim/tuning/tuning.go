package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"whiteout.ai/internal/sim/rules"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int   `yaml:"tick_rate_hz"`
	AIIntervalMs       int   `yaml:"ai_interval_ms"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	Seed               int64 `yaml:"seed"`

	// Rules names a built-in preset; RulesPath, when set, is a YAML file
	// layered over that preset.
	Rules     string `yaml:"rules"`
	RulesPath string `yaml:"rules_path"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	InputWindowTicks int `yaml:"input_window_ticks"`
	InputMax         int `yaml:"input_max"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         30,
		AIIntervalMs:       100,
		SnapshotEveryTicks: 900,
		Seed:               1337,
		Rules:              "survival",
		RateLimits: RateLimits{
			InputWindowTicks: 30,
			InputMax:         120,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000")
	}
	if t.AIIntervalMs < 0 {
		return fmt.Errorf("ai_interval_ms must be >= 0")
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	if t.RateLimits.InputWindowTicks < 0 || t.RateLimits.InputMax < 0 {
		return fmt.Errorf("rate_limits must be >= 0")
	}
	return nil
}

func (t Tuning) AIInterval() time.Duration {
	return time.Duration(t.AIIntervalMs) * time.Millisecond
}

// LoadRules resolves the rule configuration selected by t. baseDir anchors
// a relative RulesPath.
func (t Tuning) LoadRules(baseDir string) (*rules.Rules, error) {
	if t.RulesPath == "" {
		return rules.Preset(t.Rules)
	}
	p := t.RulesPath
	if baseDir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	return rules.Load(p, t.Rules)
}

