package rates

import "testing"

func TestWindowAllow(t *testing.T) {
	var w Window
	for i := 0; i < 3; i++ {
		if ok, _ := w.Allow(10, 5, 3); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	ok, cd := w.Allow(12, 5, 3)
	if ok || cd != 3 {
		t.Fatalf("expected deny with cooldown 3, got ok=%v cd=%d", ok, cd)
	}
	if ok, _ := w.Allow(15, 5, 3); !ok {
		t.Fatalf("window should reset")
	}
}

func TestWindowDisabled(t *testing.T) {
	var w Window
	for i := 0; i < 100; i++ {
		if ok, _ := w.Allow(0, 0, 0); !ok {
			t.Fatalf("disabled limiter denied")
		}
	}
}
