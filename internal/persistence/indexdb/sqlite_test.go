package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/tuning"
	"whiteout.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: loop.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(loop.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(loop.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
	if st.DroppedTotal() != 3 {
		t.Fatalf("DroppedTotal=%d want=3", st.DroppedTotal())
	}
}

func TestSQLiteIndex_WritesTicksEventsSnapshots(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index", "session.sqlite")

	idx, err := OpenSQLite(dbPath, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	in := loop.Input{Attack: true, Interact: "market"}
	_ = idx.WriteTick(loop.TickLogEntry{Tick: 7, Now: 7 * time.Second / 30, Input: &in, Digest: "d7"})
	_ = idx.WriteTick(loop.TickLogEntry{Tick: 8, Digest: "d8"})
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 7, Now: 233, Event: world.Event{Type: world.EventHit, EntityID: "H3", SourceID: "P1", Amount: 25}})
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 7, Now: 233, Event: world.Event{Type: world.EventDeath, EntityID: "H3", SourceID: "P1"}})
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 8, Now: 266, Event: world.Event{Type: world.EventDenied, Reason: "E_NO_RESOURCE"}})
	idx.RecordSnapshot("/data/s/snapshots/8.snap.zst", snapshot.SnapshotV1{
		Header:      snapshot.Header{Version: snapshot.Version, SessionID: "s", Tick: 8},
		Seed:        42,
		RulesDigest: "abc",
		Entities: []snapshot.EntityV1{
			{ID: "P1", Kind: "player", Health: 80},
			{ID: "H2", Kind: "hostile"},
			{ID: "F4", Kind: "follower"},
			{ID: "F5", Kind: "follower"},
		},
		Player: snapshot.PlayerV1{EntityID: "P1", Experience: 30},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var ticks int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ticks`).Scan(&ticks); err != nil {
		t.Fatalf("count ticks: %v", err)
	}
	if ticks != 2 {
		t.Fatalf("ticks=%d want=2", ticks)
	}
	var attack int
	var action string
	if err := db.QueryRow(`SELECT attack, action FROM ticks WHERE tick=7`).Scan(&attack, &action); err != nil {
		t.Fatalf("tick 7: %v", err)
	}
	if attack != 1 || action != "interact:market" {
		t.Fatalf("tick 7 attack=%d action=%q", attack, action)
	}

	var seq int
	if err := db.QueryRow(`SELECT seq FROM events WHERE tick=7 AND type='DEATH'`).Scan(&seq); err != nil {
		t.Fatalf("death event: %v", err)
	}
	if seq != 1 {
		t.Fatalf("death seq=%d want=1", seq)
	}
	var reason string
	if err := db.QueryRow(`SELECT reason FROM events WHERE tick=8 AND seq=0`).Scan(&reason); err != nil {
		t.Fatalf("denied event: %v", err)
	}
	if reason != "E_NO_RESOURCE" {
		t.Fatalf("reason=%q", reason)
	}

	var hostiles, followers, health, xp int
	if err := db.QueryRow(`SELECT hostiles, followers, player_health, experience FROM snapshots WHERE tick=8`).Scan(&hostiles, &followers, &health, &xp); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if hostiles != 1 || followers != 2 || health != 80 || xp != 30 {
		t.Fatalf("snapshot row hostiles=%d followers=%d health=%d xp=%d", hostiles, followers, health, xp)
	}
}

func TestSQLiteIndex_RecentEventsAndConfigs(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenSQLite(filepath.Join(dir, "session.sqlite"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	r, err := rules.Preset("survival")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	if err := idx.UpsertConfigs(r, tuning.Defaults()); err != nil {
		t.Fatalf("upsert configs: %v", err)
	}
	var digest string
	if err := idx.db.QueryRow(`SELECT digest FROM configs WHERE name=?`, "rules:"+r.Name).Scan(&digest); err != nil {
		t.Fatalf("rules row: %v", err)
	}
	if digest != r.Digest() {
		t.Fatalf("digest=%q want=%q", digest, r.Digest())
	}

	for i := 0; i < 5; i++ {
		_ = idx.WriteAudit(loop.AuditEntry{Tick: uint64(i + 1), Event: world.Event{Type: world.EventGather, Amount: i}})
	}
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 6, Event: world.Event{Type: world.EventHit, Amount: 9}})

	var got []EventRow
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err = idx.RecentEvents(context.Background(), string(world.EventGather), 3)
		if err == nil && len(got) == 3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(got) != 3 {
		t.Fatalf("recent gathers=%d want=3 (err=%v)", len(got), err)
	}
	if got[0].Tick != 5 || got[2].Tick != 3 {
		t.Fatalf("order: first=%d last=%d", got[0].Tick, got[2].Tick)
	}
	for _, ev := range got {
		if ev.Type != string(world.EventGather) {
			t.Fatalf("unexpected type %q", ev.Type)
		}
	}
}
