package loop

import "whiteout.ai/internal/sim/world"

type Movement struct {
	Up    bool `json:"up,omitempty"`
	Down  bool `json:"down,omitempty"`
	Left  bool `json:"left,omitempty"`
	Right bool `json:"right,omitempty"`
}

// Direction is the unit ground-plane direction of the pressed keys. Up is
// -Z, matching the presentation camera.
func (m Movement) Direction() world.Vec2 {
	var d world.Vec2
	if m.Up {
		d.Z--
	}
	if m.Down {
		d.Z++
	}
	if m.Left {
		d.X--
	}
	if m.Right {
		d.X++
	}
	if n := d.Len(); n > 0 {
		d = d.Scale(1 / n)
	}
	return d
}

type BuildIntent struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

type AssignIntent struct {
	WorkerID   string `json:"worker_id"`
	BuildingID string `json:"building_id"`
}

// Input is the intent sampled at the start of one tick.
type Input struct {
	Movement Movement      `json:"movement"`
	Attack   bool          `json:"attack,omitempty"`
	Interact string        `json:"interact,omitempty"`
	Build    *BuildIntent  `json:"build,omitempty"`
	Assign   *AssignIntent `json:"assign,omitempty"`
	Gather   string        `json:"gather,omitempty"`
}

// Merge folds a later request into in. Held movement keys take the latest
// value; an attack request sticks until the tick consumes it; discrete
// actions keep the latest non-empty value.
func (in Input) Merge(next Input) Input {
	out := in
	out.Movement = next.Movement
	out.Attack = in.Attack || next.Attack
	if next.Interact != "" {
		out.Interact = next.Interact
	}
	if next.Build != nil {
		b := *next.Build
		out.Build = &b
	}
	if next.Assign != nil {
		a := *next.Assign
		out.Assign = &a
	}
	if next.Gather != "" {
		out.Gather = next.Gather
	}
	return out
}

func (in Input) IsZero() bool {
	return in.Movement == (Movement{}) && !in.Attack && in.Interact == "" &&
		in.Build == nil && in.Assign == nil && in.Gather == ""
}
