package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sample(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header:     Header{Version: Version, SessionID: "s1", Tick: tick},
		Seed:       9,
		TickRateHz: 30,
		RulesName:  "survival",
		RulesJSON:  []byte(`{"name":"survival"}`),
		NowNanos:   int64(tick) * 33_333_333,
		Entities: []EntityV1{
			{ID: "P1", Num: 1, Kind: "player", Health: 90, MaxHealth: 100, X: 1.5},
			{ID: "B2", Num: 2, Kind: "building", Type: "storage", Health: 1, MaxHealth: 1, Workers: []string{"W3"}},
		},
		NextEntityNum: 3,
		Player:        PlayerV1{EntityID: "P1", Experience: 12},
		Resources:     map[string]int{"wood": 4},
		Counters:      CountersV1{Kills: 2},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	want := sample(900)
	path := Path(dir, want.Header.Tick)
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestLatestPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if p, _, err := Latest(dir); err != nil || p != "" {
		t.Fatalf("empty dir: %q %v", p, err)
	}
	for _, tick := range []uint64{900, 10800, 1800} {
		if err := WriteSnapshot(Path(dir, tick), sample(tick)); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "snapshots", "junk.snap.zst"), []byte("x"), 0o644)
	p, tick, err := Latest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if tick != 10800 || filepath.Base(p) != "10800.snap.zst" {
		t.Fatalf("latest: %s %d", p, tick)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error")
	}
}
