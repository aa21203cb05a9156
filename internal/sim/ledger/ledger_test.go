package ledger

import (
	"errors"
	"reflect"
	"testing"

	"whiteout.ai/internal/sim/mathx"
)

func TestApply_OverdraftIsNoop(t *testing.T) {
	l := New(map[string]int{"wood": 10})
	err := l.Apply(map[string]int{"wood": -15})
	if !errors.Is(err, ErrInsufficientResources) {
		t.Fatalf("expected ErrInsufficientResources, got %v", err)
	}
	if got := l.Get("wood"); got != 10 {
		t.Fatalf("wood: got %d want 10", got)
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	l := New(map[string]int{"wood": 5, "money": 3})
	err := l.Apply(map[string]int{"wood": -2, "money": -4, "meat": 7})
	if !errors.Is(err, ErrInsufficientResources) {
		t.Fatalf("expected ErrInsufficientResources, got %v", err)
	}
	want := map[string]int{"wood": 5, "money": 3}
	if got := l.Balances(); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances changed: got %v want %v", got, want)
	}

	if err := l.Apply(map[string]int{"wood": -5, "money": -3, "meat": 7}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want = map[string]int{"meat": 7}
	if got := l.Balances(); !reflect.DeepEqual(got, want) {
		t.Fatalf("balances: got %v want %v", got, want)
	}
}

func TestCanAfford(t *testing.T) {
	l := New(map[string]int{"money": 50})
	if !l.CanAfford(map[string]int{"money": 50}) {
		t.Fatalf("exact balance should be affordable")
	}
	if l.CanAfford(map[string]int{"money": 51}) {
		t.Fatalf("51 should not be affordable")
	}
	if l.CanAfford(map[string]int{"money": 1, "wood": 1}) {
		t.Fatalf("missing wood should not be affordable")
	}
	if !l.CanAfford(nil) {
		t.Fatalf("empty cost should be affordable")
	}
}

func TestNew_DropsNonPositive(t *testing.T) {
	l := New(map[string]int{"wood": -4, "meat": 0, "money": 2})
	if l.Get("wood") != 0 || l.Get("meat") != 0 || l.Get("money") != 2 {
		t.Fatalf("unexpected balances: %v", l.Balances())
	}
}

func TestApply_RandomSequencesNeverNegative(t *testing.T) {
	resources := []string{"wood", "meat", "money", "ammo"}
	l := New(nil)
	for i := uint64(0); i < 5000; i++ {
		delta := map[string]int{}
		for j, r := range resources {
			u := mathx.Roll(99, i, uint64(j), 0)
			// Debits are larger than credits on purpose.
			delta[r] = int(u*40) - 25
		}
		before := l.Balances()
		err := l.Apply(delta)
		for _, r := range resources {
			if l.Get(r) < 0 {
				t.Fatalf("step %d: %s went negative: %d", i, r, l.Get(r))
			}
		}
		if err != nil && !reflect.DeepEqual(before, l.Balances()) {
			t.Fatalf("step %d: rejected apply mutated ledger", i)
		}
	}
}

func TestResourcesSortedAndNonZero(t *testing.T) {
	l := New(map[string]int{"wood": 3, "ammo": 1, "food": 2})
	if err := l.Apply(map[string]int{"food": -2}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := l.Resources(); !reflect.DeepEqual(got, []string{"ammo", "wood"}) {
		t.Fatalf("resources: %v", got)
	}
	if got := New(nil).Resources(); len(got) != 0 {
		t.Fatalf("empty ledger resources: %v", got)
	}
}

func TestCombineAndNegate(t *testing.T) {
	got := Combine(Negate(map[string]int{"meat": 2}), map[string]int{"money": 10, "meat": 2})
	want := map[string]int{"money": 10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("combine: got %v want %v", got, want)
	}
}
