// Package ai runs the per-entity policies for autonomous kinds: hostiles
// (wander/chase), followers (follow/guard) and workers (walk/gather).
//
// Decisions (state transitions, wander targets, attacks, gather rolls) run
// on a throttled cadence tracked per entity in NextThink. Movement follows
// the current state every tick so it stays smooth between decisions.
package ai

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/sim/combat"
	"whiteout.ai/internal/sim/ledger"
	"whiteout.ai/internal/sim/mathx"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/world"
)

const (
	saltWander uint64 = iota + 1
	saltWanderAngle
	saltWanderRadius
	saltGather

	wanderEpsilon = 0.1
)

type Controller struct {
	state    *world.State
	ledger   *ledger.Ledger
	rules    *rules.Rules
	combat   *combat.Resolver
	seed     int64
	interval time.Duration
	log      *logrus.Entry

	Gathers uint64
}

type Config struct {
	Seed int64
	// Interval is the minimum simulated time between two decisions of the
	// same entity. Zero means every tick.
	Interval time.Duration
}

func New(s *world.State, l *ledger.Ledger, r *rules.Rules, c *combat.Resolver, cfg Config, log logrus.FieldLogger) *Controller {
	return &Controller{
		state:    s,
		ledger:   l,
		rules:    r,
		combat:   c,
		seed:     cfg.Seed,
		interval: cfg.Interval,
		log:      logger.Component(log, "ai"),
	}
}

// Step advances every autonomous entity by one tick. Entities are visited
// in creation order; one removed earlier in the same step is skipped.
func (c *Controller) Step(now time.Duration, tick uint64) {
	for _, id := range c.state.IDs(world.KindHostile, world.KindFollower, world.KindWorker) {
		e := c.state.Get(id)
		if !e.Alive() {
			continue
		}
		think := now >= e.NextThink
		if think {
			e.NextThink = now + c.interval
		}
		switch e.Kind {
		case world.KindHostile:
			c.hostile(e, now, tick, think)
		case world.KindFollower:
			c.follower(e, now, think)
		case world.KindWorker:
			c.worker(e, tick, think)
		}
	}
}

func (c *Controller) hostile(e *world.Entity, now time.Duration, tick uint64, think bool) {
	p := c.state.PlayerEntity()
	if think {
		switch {
		case p.Alive() && e.Pos.Dist(p.Pos) < e.ViewRange:
			e.AI = world.AIChase
		default:
			if e.AI == world.AIChase {
				e.HasWanderTarget = false
			}
			e.AI = world.AIWander
		}
	}

	if e.AI == world.AIChase && p.Alive() {
		d := e.Pos.Dist(p.Pos)
		if d >= e.AttackRange {
			e.Pos = e.Pos.StepToward(p.Pos, e.Speed)
		}
		e.Facing = e.Pos.Heading(p.Pos)
		if think && e.Pos.Dist(p.Pos) < e.AttackRange && e.CooldownReady(now) {
			res := c.combat.Attack(e.ID, p.ID, now)
			if !res.Stale {
				e.MarkAction(now)
			}
		}
		return
	}

	def := c.rules.Hostiles[e.Type]
	if think && mathx.Roll(c.seed, tick, e.Num, saltWander) < def.WanderChance {
		angle := 2 * math.Pi * mathx.Roll(c.seed, tick, e.Num, saltWanderAngle)
		radius := def.WanderRadius * mathx.Roll(c.seed, tick, e.Num, saltWanderRadius)
		t := world.Vec2{X: e.Pos.X + radius*math.Sin(angle), Z: e.Pos.Z + radius*math.Cos(angle)}
		e.WanderTarget = c.clampToGround(t)
		e.HasWanderTarget = true
	}
	if e.HasWanderTarget && e.Pos.Dist(e.WanderTarget) > wanderEpsilon {
		e.Facing = e.Pos.Heading(e.WanderTarget)
		e.Pos = e.Pos.StepToward(e.WanderTarget, e.Speed*def.WanderFactor)
	}
}

func (c *Controller) follower(e *world.Entity, now time.Duration, think bool) {
	if p := c.state.PlayerEntity(); p.Alive() {
		if d := e.Pos.Dist(p.Pos); d > e.FollowDistance {
			step := math.Min(e.Speed, d-e.FollowDistance)
			e.Facing = e.Pos.Heading(p.Pos)
			e.Pos = e.Pos.StepToward(p.Pos, step)
		}
	}
	if !think || !e.CooldownReady(now) {
		return
	}
	radius := c.rules.Follower.AggroRadius
	for _, h := range c.state.List(world.KindHostile) {
		if !h.Alive() || e.Pos.Dist(h.Pos) > radius {
			continue
		}
		res := c.combat.Attack(e.ID, h.ID, now)
		if !res.Stale {
			e.MarkAction(now)
			return
		}
	}
}

func (c *Controller) worker(e *world.Entity, tick uint64, think bool) {
	if e.AssignedTo == "" {
		return
	}
	b := c.state.Get(e.AssignedTo)
	if b == nil {
		e.AssignedTo = ""
		return
	}
	eps := c.rules.Worker.ArriveEpsilon
	if d := e.Pos.Dist(b.Pos); d > eps {
		e.Facing = e.Pos.Heading(b.Pos)
		e.Pos = e.Pos.StepToward(b.Pos, e.Speed)
		return
	}
	if !think {
		return
	}
	def := c.rules.Buildings[b.Type]
	if len(def.Produces) == 0 {
		return
	}
	if mathx.Roll(c.seed, tick, e.Num, saltGather) >= c.rules.Worker.GatherChance {
		return
	}
	if err := c.ledger.Apply(def.Produces); err != nil {
		c.log.WithError(err).WithField("worker", e.ID).Warn("gather rejected")
		return
	}
	c.Gathers++
	c.state.Emit(world.Event{Type: world.EventGather, EntityID: e.ID, SourceID: b.ID, Delta: copyMap(def.Produces)})
}

func (c *Controller) clampToGround(v world.Vec2) world.Vec2 {
	h := c.rules.WorldHalfExtent
	if h <= 0 {
		return v
	}
	return world.Vec2{X: mathx.Clamp(v.X, -h, h), Z: mathx.Clamp(v.Z, -h, h)}
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
