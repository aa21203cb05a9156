package rules

import (
	"fmt"

	"whiteout.ai/internal/sim/world"
)

// NewEntity builds an entity template for kind/typ at pos from the rule
// tables. The caller spawns it into a world.State.
func (r *Rules) NewEntity(kind world.Kind, typ string, pos world.Vec2) (world.Entity, error) {
	e := world.Entity{Kind: kind, Type: typ, Pos: pos}
	switch kind {
	case world.KindPlayer:
		p := r.Player
		e.MaxHealth = p.MaxHealth
		e.Speed = p.Speed
		e.Damage = p.Damage
		e.AttackRange = p.AttackRange
		e.AttackCooldown = p.AttackCooldown()
	case world.KindHostile:
		h, ok := r.Hostiles[typ]
		if !ok {
			return e, fmt.Errorf("unknown hostile type %q", typ)
		}
		e.MaxHealth = h.MaxHealth
		e.Speed = h.Speed
		e.ViewRange = h.ViewRange
		e.AttackRange = h.AttackRange
		e.Damage = h.Damage
		e.AttackCooldown = h.AttackCooldown()
		e.AI = world.AIWander
	case world.KindFollower:
		f := r.Follower
		if e.Type == "" {
			e.Type = "follower"
		}
		e.MaxHealth = f.MaxHealth
		e.Speed = f.Speed
		e.Damage = f.Damage
		e.ViewRange = f.AggroRadius
		e.AttackCooldown = f.AttackCooldown()
		e.FollowDistance = f.FollowDistanceMin
		e.AI = world.AIFollow
	case world.KindWorker:
		w := r.Worker
		if e.Type == "" {
			e.Type = "worker"
		}
		e.MaxHealth = w.MaxHealth
		e.Speed = w.Speed
		e.AI = world.AIWork
	case world.KindHarvestable:
		h, ok := r.Harvestables[typ]
		if !ok {
			return e, fmt.Errorf("unknown harvestable type %q", typ)
		}
		e.MaxHealth = h.MaxHealth
	case world.KindBuilding:
		b, ok := r.Buildings[typ]
		if !ok {
			return e, fmt.Errorf("unknown building type %q", typ)
		}
		e.MaxHealth = b.MaxHealth
		if e.MaxHealth <= 0 {
			e.MaxHealth = 1
		}
	default:
		return e, fmt.Errorf("unknown kind %q", kind)
	}
	e.Health = e.MaxHealth
	return e, nil
}

// Populate spawns the initial layout into s.
func (r *Rules) Populate(s *world.State) error {
	for i, sp := range r.Spawns {
		kind, ok := world.ParseKind(sp.Kind)
		if !ok {
			return fmt.Errorf("spawns[%d]: unknown kind %q", i, sp.Kind)
		}
		e, err := r.NewEntity(kind, sp.Type, world.Vec2{X: sp.X, Z: sp.Z})
		if err != nil {
			return fmt.Errorf("spawns[%d]: %w", i, err)
		}
		s.Spawn(e)
	}
	return nil
}
