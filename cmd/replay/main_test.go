package main

import (
	"strings"
	"testing"
	"time"

	persistlog "whiteout.ai/internal/persistence/log"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rules"
)

const frame = time.Second / 60

func recordSession(t *testing.T, dir string, ticks int) *loop.Loop {
	t.Helper()
	l, err := loop.New(loop.Config{ID: "r1", Seed: 11, TickRateHz: 60, AIInterval: 100 * time.Millisecond}, rules.Survival(), nil)
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	if _, err := snapshot.WriteManifest(dir, l.Manifest(time.Unix(0, 0))); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	l.SetTickLogger(tl)
	for i := 1; i <= ticks; i++ {
		in := loop.Input{Movement: loop.Movement{Right: i%40 < 25}, Attack: i%7 == 0}
		l.Step(in, time.Duration(i)*frame)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return l
}

func TestReplayFromManifest(t *testing.T) {
	dir := t.TempDir()
	src := recordSession(t, dir, 240)

	l, err := start(dir, "", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := replay(l, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Checked != 240 || res.FromTick != 1 || res.LastTick != 240 {
		t.Fatalf("result: %+v", res)
	}
	if l.Digest() != src.Digest() {
		t.Fatalf("final digest differs")
	}
}

func TestReplayStopsAtToTick(t *testing.T) {
	dir := t.TempDir()
	recordSession(t, dir, 120)

	l, err := start(dir, "", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := replay(l, dir, 49)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Checked != 49 || l.CurrentTick() != 49 {
		t.Fatalf("result: %+v tick=%d", res, l.CurrentTick())
	}
}

func TestReplayFromSnapshotSkipsEarlierTicks(t *testing.T) {
	dir := t.TempDir()
	l, err := loop.New(loop.Config{ID: "r1", Seed: 11, TickRateHz: 60, AIInterval: 100 * time.Millisecond}, rules.Survival(), nil)
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	l.SetTickLogger(tl)
	var snapPath string
	for i := 1; i <= 100; i++ {
		l.Step(loop.Input{Movement: loop.Movement{Down: true}}, time.Duration(i)*frame)
		if i == 40 {
			snap := l.ExportSnapshot()
			snapPath = snapshot.Path(dir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
				t.Fatalf("write snapshot: %v", err)
			}
		}
	}
	_ = tl.Close()

	r, err := start(dir, snapPath, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := replay(r, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.FromTick != 41 || res.Checked != 60 {
		t.Fatalf("result: %+v", res)
	}
}

func TestReplayDetectsTamperedLog(t *testing.T) {
	dir := t.TempDir()
	l, err := loop.New(loop.Config{ID: "r1", Seed: 11, TickRateHz: 60, AIInterval: 100 * time.Millisecond}, rules.Survival(), nil)
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	if _, err := snapshot.WriteManifest(dir, l.Manifest(time.Unix(0, 0))); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	for i := 0; i < 10; i++ {
		e := loop.TickLogEntry{Tick: uint64(i + 1), Now: time.Duration(i+1) * frame, Digest: "bogus"}
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = tl.Close()

	r, err := start(dir, "", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := replay(r, dir, 0); err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 1") {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestReplayFromSinkSnapshot(t *testing.T) {
	dir := t.TempDir()
	l, err := loop.New(loop.Config{ID: "r1", Seed: 11, TickRateHz: 60, AIInterval: 100 * time.Millisecond, SnapshotEveryTicks: 40}, rules.Survival(), nil)
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	l.SetTickLogger(tl)
	sink := make(chan snapshot.SnapshotV1, 4)
	l.SetSnapshotSink(sink)
	for i := 1; i <= 100; i++ {
		l.Step(loop.Input{Movement: loop.Movement{Left: i%30 < 15}, Attack: i%5 == 0}, time.Duration(i)*frame)
	}
	_ = tl.Close()
	if len(sink) != 2 {
		t.Fatalf("sink snapshots: %d", len(sink))
	}
	snap := <-sink
	if snap.Header.Tick != 40 {
		t.Fatalf("sink snapshot tick %d", snap.Header.Tick)
	}
	snapPath := snapshot.Path(dir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	r, err := start(dir, snapPath, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := replay(r, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.FromTick != 41 || res.Checked != 60 || res.LastTick != 100 {
		t.Fatalf("result: %+v", res)
	}
	if r.Digest() != l.Digest() {
		t.Fatalf("final digest differs")
	}
}

func TestStartRequiresManifest(t *testing.T) {
	if _, err := start(t.TempDir(), "", nil); err == nil {
		t.Fatalf("expected missing manifest error")
	}
}
