// Package combat applies damage, death and rewards. Cooldowns are the
// initiator's concern; the resolver only enforces player invulnerability.
package combat

import (
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/sim/ledger"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/world"
)

type Resolver struct {
	state  *world.State
	ledger *ledger.Ledger
	rules  *rules.Rules
	log    *logrus.Entry

	Kills uint64
	Hits  uint64
}

func New(s *world.State, l *ledger.Ledger, r *rules.Rules, log logrus.FieldLogger) *Resolver {
	return &Resolver{state: s, ledger: l, rules: r, log: logger.Component(log, "combat")}
}

// Result describes one resolved strike.
type Result struct {
	AttackerID string
	DefenderID string
	// Stale is set when either side was already gone; nothing happened.
	Stale   bool
	Blocked bool
	Damage  int
	Killed  bool
	Reward  map[string]int
	XP      int
}

// Attack resolves one strike using the attacker's own damage.
func (r *Resolver) Attack(attackerID, defenderID string, now time.Duration) Result {
	a := r.state.Get(attackerID)
	if !a.Alive() {
		return Result{AttackerID: attackerID, DefenderID: defenderID, Stale: true}
	}
	return r.strike(a, defenderID, a.Damage, now)
}

func (r *Resolver) strike(a *world.Entity, defenderID string, dmg int, now time.Duration) Result {
	res := Result{AttackerID: a.ID, DefenderID: defenderID}
	d := r.state.Get(defenderID)
	if !d.Alive() {
		res.Stale = true
		return res
	}
	fields := logrus.Fields{"attacker": a.ID, "defender": d.ID, "now_ms": now.Milliseconds()}

	if d.Kind == world.KindPlayer {
		if r.state.Player.Invulnerable(now) {
			res.Blocked = true
			r.state.Emit(world.Event{Type: world.EventHit, EntityID: d.ID, SourceID: a.ID, Health: d.Health, Blocked: true})
			r.log.WithFields(fields).Debug("hit blocked")
			return res
		}
	}

	res.Damage = d.TakeDamage(dmg)
	r.Hits++
	if d.Kind == world.KindPlayer && res.Damage > 0 {
		r.state.Player.InvulnerableUntil = now + r.rules.Player.Invulnerability()
	}
	r.state.Emit(world.Event{Type: world.EventHit, EntityID: d.ID, SourceID: a.ID, Amount: res.Damage, Health: d.Health})
	fields["damage"] = res.Damage
	fields["health"] = d.Health

	if d.Health > 0 {
		r.log.WithFields(fields).Debug("hit")
		return res
	}

	res.Killed = true
	r.Kills++
	pos := d.Pos
	r.state.Emit(world.Event{Type: world.EventDeath, EntityID: d.ID, Kind: d.Kind, EntityType: d.Type, SourceID: a.ID, Pos: &pos})
	kind, typ := d.Kind, d.Type
	r.state.Remove(d.ID)

	if rw, ok := r.rewardFor(kind, typ); ok {
		res.Reward, res.XP = r.payout(d.ID, rw)
	}
	fields["reward"] = res.Reward
	r.log.WithFields(fields).Debug("kill")
	return res
}

func (r *Resolver) rewardFor(kind world.Kind, typ string) (rules.Reward, bool) {
	switch kind {
	case world.KindHostile:
		h, ok := r.rules.Hostiles[typ]
		return h.Reward, ok
	case world.KindHarvestable:
		h, ok := r.rules.Harvestables[typ]
		return h.Reward, ok
	}
	return rules.Reward{}, false
}

func (r *Resolver) payout(sourceID string, rw rules.Reward) (map[string]int, int) {
	delta := map[string]int{}
	for k, v := range rw.Resources {
		if v > 0 {
			delta[k] = v
		}
	}
	if len(delta) > 0 {
		if err := r.ledger.Apply(delta); err != nil {
			// Positive deltas cannot overdraw.
			r.log.WithError(err).Error("reward rejected")
			delta = nil
		}
	}
	xp := 0
	if rw.Experience > 0 {
		xp = rw.Experience
		r.state.Player.Experience += xp
	}
	if len(delta) > 0 || xp > 0 {
		r.state.Emit(world.Event{Type: world.EventReward, SourceID: sourceID, Delta: delta, Experience: xp})
	}
	return delta, xp
}

// Sweep is the outcome of a player swing.
type Sweep struct {
	UsedGun bool
	Results []Result
}

// PlayerSweep strikes every live hostile and harvestable within the player's
// attack range. When ammo covers ammo_per_swing it is consumed once and the
// damage is multiplied by gun_multiplier.
func (r *Resolver) PlayerSweep(now time.Duration) Sweep {
	var sw Sweep
	p := r.state.PlayerEntity()
	if !p.Alive() {
		return sw
	}
	targets := r.state.Within(p.Pos, p.AttackRange, world.KindHostile, world.KindHarvestable)
	if len(targets) == 0 {
		return sw
	}
	dmg := p.Damage
	pr := r.rules.Player
	if pr.GunMultiplier > 1 && pr.AmmoPerSwing > 0 {
		if err := r.ledger.Apply(map[string]int{"ammo": -pr.AmmoPerSwing}); err == nil {
			sw.UsedGun = true
			dmg *= pr.GunMultiplier
		}
	}
	// Targets were collected before any removal so a kill cannot shift the
	// iteration; strike re-checks liveness.
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	for _, id := range ids {
		sw.Results = append(sw.Results, r.strike(p, id, dmg, now))
	}
	return sw
}
