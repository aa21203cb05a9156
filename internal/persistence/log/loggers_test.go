package log

import (
	"path/filepath"
	"testing"
	"time"

	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/world"
)

func TestTickLogRoundTripAcrossRotation(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	hour := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	tl.w.clock = func() time.Time { return hour }

	for i := uint64(0); i < 10; i++ {
		if i == 5 {
			hour = hour.Add(time.Hour)
		}
		in := &loop.Input{Attack: i%2 == 0}
		if err := tl.WriteTick(loop.TickLogEntry{Tick: i, Now: time.Duration(i) * time.Millisecond, Input: in, Digest: "d"}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) != 2 {
		t.Fatalf("files: %v %v", files, err)
	}

	var got []loop.TickLogEntry
	if err := ReadTicks(dir, func(e loop.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("entries: %d", len(got))
	}
	for i, e := range got {
		if e.Tick != uint64(i) || e.Input == nil || e.Input.Attack != (i%2 == 0) {
			t.Fatalf("entry %d: %+v", i, e)
		}
	}
}

func TestAuditLoggerAppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	for round := 0; round < 2; round++ {
		al := NewAuditLogger(dir)
		ev := world.Event{Type: world.EventHit, EntityID: "P1", Amount: 5}
		if err := al.WriteAudit(loop.AuditEntry{Tick: uint64(round), Event: ev}); err != nil {
			t.Fatal(err)
		}
		if err := al.Close(); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListFiles(filepath.Join(dir, "audit"), "audit")
	if err != nil || len(files) == 0 {
		t.Fatalf("files: %v %v", files, err)
	}
	n := 0
	for _, f := range files {
		if err := readFile(f, func([]byte) error { n++; return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if n != 2 {
		t.Fatalf("lines: %d", n)
	}
}
