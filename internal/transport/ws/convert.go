package ws

import (
	"whiteout.ai/internal/protocol"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/world"
)

func stateMessage(s *loop.Snapshot) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            s.Tick,
		NowMs:           s.Now.Milliseconds(),
		Entities:        make([]protocol.EntityState, 0, len(s.Entities)),
		Resources:       s.Resources,
		Player: protocol.PlayerState{
			EntityID:     s.PlayerID,
			Health:       s.PlayerHealth,
			MaxHealth:    s.PlayerMaxHealth,
			Experience:   s.PlayerExperience,
			Invulnerable: s.Invulnerable,
		},
		GameOver: s.GameOver,
		Digest:   s.Digest,
	}
	if msg.Resources == nil {
		msg.Resources = map[string]int{}
	}
	for _, e := range s.Entities {
		msg.Entities = append(msg.Entities, protocol.EntityState{
			ID:         e.ID,
			Kind:       string(e.Kind),
			Type:       e.Type,
			Pos:        [2]float64{e.Pos.X, e.Pos.Z},
			Facing:     e.Facing,
			Health:     e.Health,
			MaxHealth:  e.MaxHealth,
			AIState:    string(e.AI),
			Workers:    e.Workers,
			AssignedTo: e.AssignedTo,
		})
	}
	for _, ev := range s.Events {
		msg.Events = append(msg.Events, eventMessage(ev))
	}
	return msg
}

func eventMessage(ev world.Event) protocol.Event {
	out := protocol.Event{
		Type:       string(ev.Type),
		EntityID:   ev.EntityID,
		Kind:       string(ev.Kind),
		EntityType: ev.EntityType,
		SourceID:   ev.SourceID,
		Amount:     ev.Amount,
		Health:     ev.Health,
		Blocked:    ev.Blocked,
		Delta:      ev.Delta,
		Experience: ev.Experience,
		Reason:     ev.Reason,
	}
	if ev.Pos != nil {
		out.Pos = &[2]float64{ev.Pos.X, ev.Pos.Z}
	}
	return out
}

func inputFromMessage(m protocol.InputMsg) loop.Input {
	in := loop.Input{
		Movement: loop.Movement{
			Up:    m.Movement.Up,
			Down:  m.Movement.Down,
			Left:  m.Movement.Left,
			Right: m.Movement.Right,
		},
		Attack:   m.Attack,
		Interact: m.Interact,
		Gather:   m.Gather,
	}
	if m.Build != nil {
		in.Build = &loop.BuildIntent{Type: m.Build.Type, X: m.Build.X, Z: m.Build.Z}
	}
	if m.Assign != nil {
		in.Assign = &loop.AssignIntent{WorkerID: m.Assign.WorkerID, BuildingID: m.Assign.BuildingID}
	}
	return in
}
