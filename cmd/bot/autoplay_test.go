package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"whiteout.ai/internal/protocol"
)

func testState(tick uint64, ents ...protocol.EntityState) *protocol.StateMsg {
	all := append([]protocol.EntityState{{ID: "P1", Kind: "player", Health: 100, MaxHealth: 100}}, ents...)
	return &protocol.StateMsg{Tick: tick, Entities: all, Player: protocol.PlayerState{EntityID: "P1", Health: 100}}
}

func TestPilotChasesNearestHostile(t *testing.T) {
	p := newPilot(2.5)
	st := testState(1,
		protocol.EntityState{ID: "H2", Kind: "hostile", Pos: [2]float64{10, 0}, Health: 30},
		protocol.EntityState{ID: "H3", Kind: "hostile", Pos: [2]float64{-4, -4}, Health: 30},
		protocol.EntityState{ID: "T4", Kind: "harvestable", Pos: [2]float64{1, 1}, Health: 10},
	)
	in := p.decide(st)
	if !in.Movement.Left || !in.Movement.Up || in.Movement.Right || in.Movement.Down {
		t.Fatalf("movement: %+v", in.Movement)
	}
	if in.Attack {
		t.Fatalf("attacked out of range")
	}
}

func TestPilotFallsBackToHarvestable(t *testing.T) {
	p := newPilot(2.5)
	st := testState(1,
		protocol.EntityState{ID: "H2", Kind: "hostile", Pos: [2]float64{10, 0}, Health: 0},
		protocol.EntityState{ID: "T4", Kind: "harvestable", Pos: [2]float64{0, 6}, Health: 10},
	)
	in := p.decide(st)
	if !in.Movement.Down || in.Movement.Left || in.Movement.Right {
		t.Fatalf("movement: %+v", in.Movement)
	}
}

func TestPilotAttackSpacing(t *testing.T) {
	p := newPilot(2.5)
	wolf := protocol.EntityState{ID: "H2", Kind: "hostile", Pos: [2]float64{1, 0}, Health: 30}
	if in := p.decide(testState(10, wolf)); !in.Attack || in.Movement != (protocol.MovementIn{}) {
		t.Fatalf("expected standing attack, got %+v", in)
	}
	if in := p.decide(testState(11, wolf)); in.Attack {
		t.Fatalf("attack not spaced")
	}
	if in := p.decide(testState(22, wolf)); !in.Attack {
		t.Fatalf("attack should resume after spacing")
	}
}

func TestPilotIdleWhenGameOver(t *testing.T) {
	p := newPilot(0)
	st := testState(5, protocol.EntityState{ID: "H2", Kind: "hostile", Pos: [2]float64{1, 0}, Health: 30})
	st.GameOver = true
	if in := p.decide(st); in.Attack || in.Movement != (protocol.MovementIn{}) {
		t.Fatalf("expected idle input, got %+v", in)
	}
}

func TestSameInput(t *testing.T) {
	a := protocol.InputMsg{Movement: protocol.MovementIn{Up: true}}
	b := protocol.InputMsg{Movement: protocol.MovementIn{Up: true}, Seq: 9}
	if !sameInput(a, b) {
		t.Fatalf("seq must not matter")
	}
	b.Gather = "wood"
	if sameInput(a, b) {
		t.Fatalf("discrete action must count as a change")
	}
}

func TestReadCommandsSendsInputs(t *testing.T) {
	s := &session{}
	s.welcome(protocol.WelcomeMsg{Buildings: []string{"barracks", "armory"}})
	st := testState(3, protocol.EntityState{ID: "W5", Kind: "worker"}, protocol.EntityState{ID: "B6", Kind: "building", Type: "lumberjack"})
	st.Resources = map[string]int{"money": 10}
	s.state(st)

	var sent []protocol.InputMsg
	in := strings.NewReader("go north\nbuild barracks 2 3\nstatus\nattack\nquit\nattack\n")
	var out bytes.Buffer
	err := readCommands(context.Background(), in, &out, s, func(m protocol.InputMsg) error {
		sent = append(sent, m)
		return nil
	})
	if err != nil {
		t.Fatalf("readCommands: %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("sent %d inputs: %+v", len(sent), sent)
	}
	if !sent[0].Movement.Up {
		t.Fatalf("first input: %+v", sent[0])
	}
	if sent[1].Build == nil || sent[1].Build.Type != "barracks" || sent[1].Build.X != 2 || !sent[1].Movement.Up {
		t.Fatalf("build input keeps held movement: %+v", sent[1])
	}
	if !sent[2].Attack {
		t.Fatalf("attack input: %+v", sent[2])
	}
	if !strings.Contains(out.String(), "money=10") {
		t.Fatalf("status output: %q", out.String())
	}
}
