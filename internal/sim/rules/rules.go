// Package rules holds the interchangeable rule configurations (cost tables,
// AI tunables, reward tables, initial seeding) plugged into one simulation
// core.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Rules struct {
	Name            string  `yaml:"name" json:"name"`
	WorldHalfExtent float64 `yaml:"world_half_extent" json:"world_half_extent"`

	StartingResources map[string]int `yaml:"starting_resources" json:"starting_resources,omitempty"`

	Player       PlayerDef                 `yaml:"player" json:"player"`
	Hostiles     map[string]HostileDef     `yaml:"hostiles" json:"hostiles,omitempty"`
	Follower     FollowerDef               `yaml:"follower" json:"follower"`
	Worker       WorkerDef                 `yaml:"worker" json:"worker"`
	Harvestables map[string]HarvestableDef `yaml:"harvestables" json:"harvestables,omitempty"`
	Buildings    map[string]BuildingDef    `yaml:"buildings" json:"buildings,omitempty"`

	ManualGather map[string]int `yaml:"manual_gather" json:"manual_gather,omitempty"`

	Spawns []SpawnDef `yaml:"spawns" json:"spawns,omitempty"`
}

type PlayerDef struct {
	MaxHealth         int     `yaml:"max_health" json:"max_health"`
	Speed             float64 `yaml:"speed" json:"speed"`
	Damage            int     `yaml:"damage" json:"damage"`
	AttackRange       float64 `yaml:"attack_range" json:"attack_range"`
	AttackCooldownMS  int     `yaml:"attack_cooldown_ms" json:"attack_cooldown_ms"`
	GunMultiplier     int     `yaml:"gun_multiplier" json:"gun_multiplier"`
	AmmoPerSwing      int     `yaml:"ammo_per_swing" json:"ammo_per_swing"`
	InvulnerableMS    int     `yaml:"invulnerable_ms" json:"invulnerable_ms"`
	InteractionRadius float64 `yaml:"interaction_radius" json:"interaction_radius"`
}

type HostileDef struct {
	MaxHealth        int     `yaml:"max_health" json:"max_health"`
	Speed            float64 `yaml:"speed" json:"speed"`
	ViewRange        float64 `yaml:"view_range" json:"view_range"`
	AttackRange      float64 `yaml:"attack_range" json:"attack_range"`
	Damage           int     `yaml:"damage" json:"damage"`
	AttackCooldownMS int     `yaml:"attack_cooldown_ms" json:"attack_cooldown_ms"`
	WanderChance     float64 `yaml:"wander_chance" json:"wander_chance"`
	WanderFactor     float64 `yaml:"wander_factor" json:"wander_factor"`
	WanderRadius     float64 `yaml:"wander_radius" json:"wander_radius"`
	Reward           Reward  `yaml:"reward" json:"reward"`
}

type FollowerDef struct {
	MaxHealth         int     `yaml:"max_health" json:"max_health"`
	Speed             float64 `yaml:"speed" json:"speed"`
	Damage            int     `yaml:"damage" json:"damage"`
	AttackCooldownMS  int     `yaml:"attack_cooldown_ms" json:"attack_cooldown_ms"`
	AggroRadius       float64 `yaml:"aggro_radius" json:"aggro_radius"`
	FollowDistanceMin float64 `yaml:"follow_distance_min" json:"follow_distance_min"`
	FollowDistanceMax float64 `yaml:"follow_distance_max" json:"follow_distance_max"`
}

type WorkerDef struct {
	MaxHealth     int     `yaml:"max_health" json:"max_health"`
	Speed         float64 `yaml:"speed" json:"speed"`
	ArriveEpsilon float64 `yaml:"arrive_epsilon" json:"arrive_epsilon"`
	GatherChance  float64 `yaml:"gather_chance" json:"gather_chance"`
}

type HarvestableDef struct {
	MaxHealth int    `yaml:"max_health" json:"max_health"`
	Reward    Reward `yaml:"reward" json:"reward"`
}

type Reward struct {
	Resources  map[string]int `yaml:"resources" json:"resources,omitempty"`
	Experience int            `yaml:"experience" json:"experience,omitempty"`
}

type TransactionKind string

const (
	TxTrade   TransactionKind = "trade"
	TxRecruit TransactionKind = "recruit"
	TxHeal    TransactionKind = "heal"
)

type Transaction struct {
	Kind   TransactionKind `yaml:"kind" json:"kind"`
	Cost   map[string]int  `yaml:"cost" json:"cost,omitempty"`
	Payout map[string]int  `yaml:"payout" json:"payout,omitempty"`
	Spawn  string          `yaml:"spawn" json:"spawn,omitempty"`
	Heal   int             `yaml:"heal" json:"heal,omitempty"`
}

type BuildingDef struct {
	MaxHealth   int            `yaml:"max_health" json:"max_health"`
	Cost        map[string]int `yaml:"cost" json:"cost,omitempty"`
	Capacity    int            `yaml:"capacity" json:"capacity,omitempty"`
	Produces    map[string]int `yaml:"produces" json:"produces,omitempty"`
	Transaction *Transaction   `yaml:"transaction" json:"transaction,omitempty"`
}

// Constructible reports whether the building can be placed by the player.
func (b BuildingDef) Constructible() bool { return len(b.Cost) > 0 }

type SpawnDef struct {
	Kind string  `yaml:"kind" json:"kind"`
	Type string  `yaml:"type" json:"type"`
	X    float64 `yaml:"x" json:"x"`
	Z    float64 `yaml:"z" json:"z"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (p PlayerDef) AttackCooldown() time.Duration   { return ms(p.AttackCooldownMS) }
func (p PlayerDef) Invulnerability() time.Duration  { return ms(p.InvulnerableMS) }
func (h HostileDef) AttackCooldown() time.Duration  { return ms(h.AttackCooldownMS) }
func (f FollowerDef) AttackCooldown() time.Duration { return ms(f.AttackCooldownMS) }

// Preset returns a built-in rule configuration by name.
func Preset(name string) (*Rules, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "survival":
		return Survival(), nil
	case "economy":
		return Economy(), nil
	default:
		return nil, fmt.Errorf("unknown rules preset: %q", name)
	}
}

// Load reads a YAML rule file. Fields left out fall back to the preset
// named by base (or by the file's own name when base is empty). An unknown
// preset is an error.
func Load(path, base string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if base == "" {
		base = head.Name
	}
	r, err := Preset(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Rules) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rules: name is required")
	}
	if r.Player.MaxHealth <= 0 {
		return fmt.Errorf("rules: player.max_health must be > 0")
	}
	if r.Player.Speed < 0 || r.Player.AttackRange < 0 || r.Player.InteractionRadius < 0 {
		return fmt.Errorf("rules: player ranges must be >= 0")
	}
	for name, h := range r.Hostiles {
		if h.MaxHealth <= 0 {
			return fmt.Errorf("rules: hostile %s: max_health must be > 0", name)
		}
		if h.WanderFactor < 0 || h.WanderFactor >= 1 {
			return fmt.Errorf("rules: hostile %s: wander_factor must be in [0,1)", name)
		}
		if h.WanderChance < 0 || h.WanderChance > 1 {
			return fmt.Errorf("rules: hostile %s: wander_chance must be in [0,1]", name)
		}
	}
	for name, h := range r.Harvestables {
		if h.MaxHealth <= 0 {
			return fmt.Errorf("rules: harvestable %s: max_health must be > 0", name)
		}
	}
	for name, b := range r.Buildings {
		if b.Capacity < 0 {
			return fmt.Errorf("rules: building %s: capacity must be >= 0", name)
		}
		if tx := b.Transaction; tx != nil {
			switch tx.Kind {
			case TxTrade, TxHeal:
			case TxRecruit:
				if tx.Spawn != "follower" && tx.Spawn != "worker" {
					return fmt.Errorf("rules: building %s: recruit spawn must be follower or worker", name)
				}
			default:
				return fmt.Errorf("rules: building %s: unknown transaction kind %q", name, tx.Kind)
			}
		}
		if err := nonNegative(b.Cost); err != nil {
			return fmt.Errorf("rules: building %s cost: %w", name, err)
		}
	}
	if r.Follower.FollowDistanceMax < r.Follower.FollowDistanceMin {
		return fmt.Errorf("rules: follower.follow_distance_max < follow_distance_min")
	}
	for i, s := range r.Spawns {
		if err := r.checkSpawn(s); err != nil {
			return fmt.Errorf("rules: spawns[%d]: %w", i, err)
		}
	}
	return nil
}

func (r *Rules) checkSpawn(s SpawnDef) error {
	switch s.Kind {
	case "player", "follower", "worker":
		return nil
	case "hostile":
		if _, ok := r.Hostiles[s.Type]; !ok {
			return fmt.Errorf("unknown hostile type %q", s.Type)
		}
	case "harvestable":
		if _, ok := r.Harvestables[s.Type]; !ok {
			return fmt.Errorf("unknown harvestable type %q", s.Type)
		}
	case "building":
		if _, ok := r.Buildings[s.Type]; !ok {
			return fmt.Errorf("unknown building type %q", s.Type)
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

func nonNegative(m map[string]int) error {
	for k, v := range m {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", k)
		}
	}
	return nil
}

// BuildingTypes lists building type names, sorted.
func (r *Rules) BuildingTypes() []string {
	out := make([]string, 0, len(r.Buildings))
	for k := range r.Buildings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Digest is a sha256 over the canonical JSON form of the rules.
func (r *Rules) Digest() string {
	b, _ := json.Marshal(r)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
