package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 60\nrules: economy\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 60 || tu.AIIntervalMs != 100 {
		t.Fatalf("got %+v", tu)
	}
	r, err := tu.LoadRules(dir)
	if err != nil || r.Name != "economy" {
		t.Fatalf("LoadRules: %v %v", r, err)
	}
}

func TestLoadRejectsBadTickRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadRulesFromRelativePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte("name: survival\nplayer:\n  speed: 0.3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu := Defaults()
	tu.RulesPath = "custom.yaml"
	r, err := tu.LoadRules(dir)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if r.Player.Speed != 0.3 {
		t.Fatalf("speed: %v", r.Player.Speed)
	}
}

func TestShippedConfigs(t *testing.T) {
	configs := filepath.Join("..", "..", "..", "configs")
	tu, err := Load(filepath.Join(configs, "tuning.yaml"))
	if err != nil {
		t.Fatalf("tuning.yaml: %v", err)
	}
	if _, err := tu.LoadRules(configs); err != nil {
		t.Fatalf("preset: %v", err)
	}

	tu.RulesPath = "rules/hard_winter.yaml"
	r, err := tu.LoadRules(configs)
	if err != nil {
		t.Fatalf("hard_winter: %v", err)
	}
	if r.Hostiles["wolf"].Damage != 7 || r.Hostiles["bear"].MaxHealth != 80 || r.StartingResources["ammo"] != 2 {
		t.Fatalf("overlay not applied: wolf=%+v ammo=%d", r.Hostiles["wolf"], r.StartingResources["ammo"])
	}
	if _, ok := r.Buildings["barracks"]; !ok {
		t.Fatalf("preset buildings lost")
	}
}
