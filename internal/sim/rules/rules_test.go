package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"whiteout.ai/internal/sim/world"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"survival", "economy", ""} {
		r, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if err := r.Validate(); err != nil {
			t.Fatalf("%s: %v", r.Name, err)
		}
	}
	if _, err := Preset("nope"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestSurvivalPopulate(t *testing.T) {
	r := Survival()
	s := world.NewState()
	if err := r.Populate(s); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	counts := s.CountByKind()
	if counts[world.KindPlayer] != 1 {
		t.Fatalf("players: %d", counts[world.KindPlayer])
	}
	if counts[world.KindHostile] != 5 {
		t.Fatalf("hostiles: %d", counts[world.KindHostile])
	}
	if counts[world.KindBuilding] != 5 {
		t.Fatalf("buildings: %d", counts[world.KindBuilding])
	}
	for _, e := range s.List() {
		if e.Health <= 0 || e.Health > e.MaxHealth {
			t.Fatalf("%s spawned with health %d/%d", e.ID, e.Health, e.MaxHealth)
		}
	}
	p := s.PlayerEntity()
	if p == nil || p.Damage != 10 || p.AttackRange != 2.5 {
		t.Fatalf("player template wrong: %+v", p)
	}
}

func TestEconomyHasWorkerAndNoHostiles(t *testing.T) {
	s := world.NewState()
	if err := Economy().Populate(s); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	c := s.CountByKind()
	if c[world.KindWorker] != 1 || c[world.KindHostile] != 0 {
		t.Fatalf("counts: %+v", c)
	}
	if got := Economy().Buildings["worker_station"].Capacity; got != 3 {
		t.Fatalf("worker_station capacity: %d", got)
	}
}

func TestLoadOverlaysPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.yaml")
	body := "name: survival\nplayer:\n  damage: 25\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Player.Damage != 25 {
		t.Fatalf("damage: %d", r.Player.Damage)
	}
	if r.Player.MaxHealth != 100 {
		t.Fatalf("unset fields should come from preset, got %d", r.Player.MaxHealth)
	}
	if r.Digest() == Survival().Digest() {
		t.Fatalf("digest should change with contents")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	body := "name: survival\nhostiles:\n  wolf:\n    max_health: 10\n    wander_factor: 1.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsUnknownPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typo.yaml")
	if err := os.WriteFile(path, []byte("name: survivl\nplayer:\n  damage: 25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil || !strings.Contains(err.Error(), "unknown rules preset") {
		t.Fatalf("expected unknown preset error, got %v", err)
	}
	if _, err := Load(path, "economi"); err == nil {
		t.Fatalf("expected unknown base error")
	}
	r, err := Load(path, "survival")
	if err != nil {
		t.Fatalf("explicit base: %v", err)
	}
	if r.Name != "survivl" || r.Player.Damage != 25 || r.Player.MaxHealth != 100 {
		t.Fatalf("overlay on explicit base: %+v", r.Player)
	}
}

func TestDigestStable(t *testing.T) {
	if Survival().Digest() != Survival().Digest() {
		t.Fatalf("digest not deterministic")
	}
	if Survival().Digest() == Economy().Digest() {
		t.Fatalf("presets should differ")
	}
}
