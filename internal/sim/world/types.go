package world

import (
	"math"
	"time"
)

type Kind string

const (
	KindPlayer      Kind = "player"
	KindHostile     Kind = "hostile"
	KindFollower    Kind = "follower"
	KindWorker      Kind = "worker"
	KindHarvestable Kind = "harvestable"
	KindBuilding    Kind = "building"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindPlayer, KindHostile, KindFollower, KindWorker, KindHarvestable, KindBuilding:
		return k, true
	}
	return "", false
}

type AIState string

const (
	AINone   AIState = ""
	AIWander AIState = "wander"
	AIChase  AIState = "chase"
	AIFollow AIState = "follow"
	AIWork   AIState = "work"
)

// Vec2 is a point on the ground plane. Height is presentation-only.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (v Vec2) Add(o Vec2) Vec2        { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2        { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }
func (v Vec2) Scale(f float64) Vec2   { return Vec2{X: v.X * f, Z: v.Z * f} }
func (v Vec2) Len() float64           { return math.Hypot(v.X, v.Z) }
func (v Vec2) Dist(o Vec2) float64    { return v.Sub(o).Len() }
func (v Vec2) Heading(o Vec2) float64 { return math.Atan2(o.X-v.X, o.Z-v.Z) }

// StepToward moves at most step units from v toward target without
// overshooting it.
func (v Vec2) StepToward(target Vec2, step float64) Vec2 {
	d := target.Sub(v)
	n := d.Len()
	if n == 0 || step <= 0 {
		return v
	}
	if step >= n {
		return target
	}
	return v.Add(d.Scale(step / n))
}

// Entity is any simulated object with a position. Fields that do not apply
// to a kind stay at their zero value.
type Entity struct {
	ID   string `json:"id"`
	Num  uint64 `json:"num"`
	Kind Kind   `json:"kind"`
	Type string `json:"type"`

	Pos    Vec2    `json:"pos"`
	Facing float64 `json:"facing"`

	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`

	AI AIState `json:"ai_state,omitempty"`

	// LastAction is the simulated time of the last attack; Acted is false
	// until the first one.
	LastAction time.Duration `json:"last_action"`
	Acted      bool          `json:"acted"`
	NextThink  time.Duration `json:"next_think"`

	Speed          float64       `json:"speed,omitempty"`
	ViewRange      float64       `json:"view_range,omitempty"`
	AttackRange    float64       `json:"attack_range,omitempty"`
	Damage         int           `json:"damage,omitempty"`
	AttackCooldown time.Duration `json:"attack_cooldown,omitempty"`

	WanderTarget    Vec2 `json:"wander_target"`
	HasWanderTarget bool `json:"has_wander_target,omitempty"`

	FollowDistance float64 `json:"follow_distance,omitempty"`

	AssignedTo string   `json:"assigned_to,omitempty"`
	Workers    []string `json:"workers,omitempty"`
}

func (e *Entity) Alive() bool { return e != nil && e.Health > 0 }

// CooldownReady reports whether cooldown has elapsed since the last action.
func (e *Entity) CooldownReady(now time.Duration) bool {
	return !e.Acted || now-e.LastAction >= e.AttackCooldown
}

func (e *Entity) MarkAction(now time.Duration) {
	e.LastAction = now
	e.Acted = true
}

// TakeDamage subtracts n (clamped at zero health) and returns the amount
// actually dealt.
func (e *Entity) TakeDamage(n int) int {
	if n <= 0 || e.Health <= 0 {
		return 0
	}
	if n > e.Health {
		n = e.Health
	}
	e.Health -= n
	return n
}

// Heal adds n up to MaxHealth and returns the amount restored.
func (e *Entity) Heal(n int) int {
	if n <= 0 || e.Health <= 0 {
		return 0
	}
	if e.Health+n > e.MaxHealth {
		n = e.MaxHealth - e.Health
	}
	e.Health += n
	return n
}

func (e *Entity) clone() Entity {
	c := *e
	if e.Workers != nil {
		c.Workers = append([]string(nil), e.Workers...)
	}
	return c
}

// PlayerState is the player-only bookkeeping that outlives the player entity.
type PlayerState struct {
	EntityID          string        `json:"entity_id"`
	Experience        int           `json:"experience"`
	InvulnerableUntil time.Duration `json:"invulnerable_until"`
	Down              bool          `json:"down"`
}

func (p PlayerState) Invulnerable(now time.Duration) bool {
	return now < p.InvulnerableUntil
}
