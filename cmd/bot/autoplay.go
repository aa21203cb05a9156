package main

import (
	"math"

	"whiteout.ai/internal/protocol"
)

// pilot decides the next INPUT from a STATE message. It chases the nearest
// hostile, then the nearest harvestable, and swings when one is in reach.
type pilot struct {
	attackRange float64
	// deadZone stops key jitter once the target is roughly aligned.
	deadZone float64
	// attackEvery spaces swing requests so the bot stays under the input
	// rate limit; the server enforces the real cooldown.
	attackEvery uint64
	nextAttack  uint64
}

func newPilot(attackRange float64) *pilot {
	if attackRange <= 0 {
		attackRange = 2.5
	}
	return &pilot{attackRange: attackRange, deadZone: 0.4, attackEvery: 12}
}

func (p *pilot) decide(st *protocol.StateMsg) protocol.InputMsg {
	in := p.steer(st)
	if in.Attack {
		if st.Tick < p.nextAttack {
			in.Attack = false
		} else {
			p.nextAttack = st.Tick + p.attackEvery
		}
	}
	return in
}

func (p *pilot) steer(st *protocol.StateMsg) protocol.InputMsg {
	in := protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version}
	if st.GameOver {
		return in
	}
	self, ok := findEntity(st.Entities, st.Player.EntityID)
	if !ok {
		return in
	}
	target, dist, ok := nearest(st.Entities, self.Pos, "hostile")
	if !ok {
		target, dist, ok = nearest(st.Entities, self.Pos, "harvestable")
	}
	if !ok {
		return in
	}
	if dist <= p.attackRange*0.8 {
		in.Attack = true
		return in
	}
	dx := target.Pos[0] - self.Pos[0]
	dz := target.Pos[1] - self.Pos[1]
	in.Movement = protocol.MovementIn{
		Left:  dx < -p.deadZone,
		Right: dx > p.deadZone,
		Up:    dz < -p.deadZone,
		Down:  dz > p.deadZone,
	}
	if dist <= p.attackRange {
		in.Attack = true
	}
	return in
}

func findEntity(ents []protocol.EntityState, id string) (protocol.EntityState, bool) {
	for _, e := range ents {
		if e.ID == id {
			return e, true
		}
	}
	return protocol.EntityState{}, false
}

// nearest ignores dead entities. Ties keep the first in STATE order.
func nearest(ents []protocol.EntityState, from [2]float64, kind string) (protocol.EntityState, float64, bool) {
	var (
		best  protocol.EntityState
		bestD = math.Inf(1)
		found bool
	)
	for _, e := range ents {
		if e.Kind != kind || e.Health <= 0 {
			continue
		}
		d := math.Hypot(e.Pos[0]-from[0], e.Pos[1]-from[1])
		if d < bestD {
			best, bestD, found = e, d, true
		}
	}
	return best, bestD, found
}

// sameInput reports whether two inputs would drive the same tick, so the
// bot only sends on change.
func sameInput(a, b protocol.InputMsg) bool {
	return a.Movement == b.Movement && a.Attack == b.Attack && a.Interact == "" && b.Interact == "" &&
		a.Build == nil && b.Build == nil && a.Assign == nil && b.Assign == nil && a.Gather == "" && b.Gather == ""
}
