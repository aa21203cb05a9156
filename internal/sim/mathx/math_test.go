package mathx

import "testing"

func TestRoll_DeterministicAndInRange(t *testing.T) {
	for i := uint64(0); i < 1000; i++ {
		a := Roll(42, i, 7, 1)
		b := Roll(42, i, 7, 1)
		if a != b {
			t.Fatalf("roll not deterministic at %d: %v vs %v", i, a, b)
		}
		if a < 0 || a >= 1 {
			t.Fatalf("roll out of range at %d: %v", i, a)
		}
	}
	if Roll(42, 1, 7, 1) == Roll(43, 1, 7, 1) {
		t.Fatalf("expected different seeds to diverge")
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, -1, 1); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := ClampInt(-3, 0, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Lerp(2, 4, 0.5); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}
