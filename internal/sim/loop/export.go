package loop

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/ledger"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/world"
)

// ExportSnapshot captures the session after the last completed tick. It
// must be called from the loop goroutine (or while no Step runs).
func (l *Loop) ExportSnapshot() snapshot.SnapshotV1 {
	rj, _ := json.Marshal(l.rules)
	ents := l.state.Clones()
	out := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			SessionID: l.cfg.ID,
			Tick:      l.tick.Load(),
		},
		Seed:               l.cfg.Seed,
		TickRateHz:         l.cfg.TickRateHz,
		AIIntervalMs:       int(l.cfg.AIInterval / time.Millisecond),
		SnapshotEveryTicks: l.cfg.SnapshotEveryTicks,
		RulesName:          l.rules.Name,
		RulesDigest:        l.rules.Digest(),
		RulesJSON:          rj,
		NowNanos:           int64(l.now),
		GameOver:           l.gameOver,
		Entities:           make([]snapshot.EntityV1, 0, len(ents)),
		NextEntityNum:      l.state.NextNum(),
		Player: snapshot.PlayerV1{
			EntityID:          l.state.Player.EntityID,
			Experience:        l.state.Player.Experience,
			InvulnerableUntil: int64(l.state.Player.InvulnerableUntil),
			Down:              l.state.Player.Down,
		},
		Resources: l.ledger.Balances(),
		Counters: snapshot.CountersV1{
			Kills:    l.combat.Kills,
			Hits:     l.combat.Hits,
			Gathers:  l.ai.Gathers,
			TxOK:     l.interact.OK,
			TxDenied: l.interact.Denied,
		},
	}
	for _, e := range ents {
		out.Entities = append(out.Entities, snapshot.EntityV1{
			ID:              e.ID,
			Num:             e.Num,
			Kind:            string(e.Kind),
			Type:            e.Type,
			X:               e.Pos.X,
			Z:               e.Pos.Z,
			Facing:          e.Facing,
			Health:          e.Health,
			MaxHealth:       e.MaxHealth,
			AI:              string(e.AI),
			LastAction:      int64(e.LastAction),
			Acted:           e.Acted,
			NextThink:       int64(e.NextThink),
			Speed:           e.Speed,
			ViewRange:       e.ViewRange,
			AttackRange:     e.AttackRange,
			Damage:          e.Damage,
			AttackCooldown:  int64(e.AttackCooldown),
			WanderX:         e.WanderTarget.X,
			WanderZ:         e.WanderTarget.Z,
			HasWanderTarget: e.HasWanderTarget,
			FollowDistance:  e.FollowDistance,
			AssignedTo:      e.AssignedTo,
			Workers:         e.Workers,
		})
	}
	return out
}

// FromSnapshot resumes a session. The next Step runs the tick after the
// snapshot's; a tick 0 snapshot resumes before the first tick.
func FromSnapshot(snap snapshot.SnapshotV1, log logrus.FieldLogger) (*Loop, error) {
	if snap.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	r := &rules.Rules{}
	if err := json.Unmarshal(snap.RulesJSON, r); err != nil {
		return nil, fmt.Errorf("snapshot rules: %w", err)
	}
	if snap.RulesDigest != "" && r.Digest() != snap.RulesDigest {
		return nil, fmt.Errorf("snapshot rules digest mismatch")
	}
	cfg := Config{
		ID:                 snap.Header.SessionID,
		Seed:               snap.Seed,
		TickRateHz:         snap.TickRateHz,
		AIInterval:         time.Duration(snap.AIIntervalMs) * time.Millisecond,
		SnapshotEveryTicks: snap.SnapshotEveryTicks,
	}
	l, err := newLoop(cfg, r, log)
	if err != nil {
		return nil, err
	}

	ents := make([]world.Entity, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		kind, ok := world.ParseKind(e.Kind)
		if !ok {
			return nil, fmt.Errorf("snapshot entity %s: unknown kind %q", e.ID, e.Kind)
		}
		ents = append(ents, world.Entity{
			ID:              e.ID,
			Num:             e.Num,
			Kind:            kind,
			Type:            e.Type,
			Pos:             world.Vec2{X: e.X, Z: e.Z},
			Facing:          e.Facing,
			Health:          e.Health,
			MaxHealth:       e.MaxHealth,
			AI:              world.AIState(e.AI),
			LastAction:      time.Duration(e.LastAction),
			Acted:           e.Acted,
			NextThink:       time.Duration(e.NextThink),
			Speed:           e.Speed,
			ViewRange:       e.ViewRange,
			AttackRange:     e.AttackRange,
			Damage:          e.Damage,
			AttackCooldown:  time.Duration(e.AttackCooldown),
			WanderTarget:    world.Vec2{X: e.WanderX, Z: e.WanderZ},
			HasWanderTarget: e.HasWanderTarget,
			FollowDistance:  e.FollowDistance,
			AssignedTo:      e.AssignedTo,
			Workers:         e.Workers,
		})
	}
	l.state.Restore(ents, snap.NextEntityNum, world.PlayerState{
		EntityID:          snap.Player.EntityID,
		Experience:        snap.Player.Experience,
		InvulnerableUntil: time.Duration(snap.Player.InvulnerableUntil),
		Down:              snap.Player.Down,
	})
	l.ledger = ledger.New(snap.Resources)
	l.now = time.Duration(snap.NowNanos)
	l.gameOver = snap.GameOver
	l.wire()
	l.combat.Kills = snap.Counters.Kills
	l.combat.Hits = snap.Counters.Hits
	l.ai.Gathers = snap.Counters.Gathers
	l.interact.OK = snap.Counters.TxOK
	l.interact.Denied = snap.Counters.TxDenied

	l.tick.Store(snap.Header.Tick)
	l.publish(l.buildSnapshot(snap.Header.Tick, nil, l.Digest()))
	l.log.WithFields(logrus.Fields{"tick": snap.Header.Tick, "entities": len(ents)}).Info("resumed from snapshot")
	return l, nil
}

// Manifest describes the session's starting configuration.
func (l *Loop) Manifest(createdAt time.Time) snapshot.Manifest {
	rj, _ := json.Marshal(l.rules)
	return snapshot.Manifest{
		Version:            snapshot.Version,
		SessionID:          l.cfg.ID,
		CreatedAt:          createdAt.UTC().Format(time.RFC3339),
		Seed:               l.cfg.Seed,
		TickRateHz:         l.cfg.TickRateHz,
		AIIntervalMs:       int(l.cfg.AIInterval / time.Millisecond),
		SnapshotEveryTicks: l.cfg.SnapshotEveryTicks,
		RulesName:          l.rules.Name,
		RulesDigest:        l.rules.Digest(),
		Rules:              rj,
	}
}

// FromManifest starts a fresh session exactly as the manifest recorded it.
func FromManifest(m snapshot.Manifest, log logrus.FieldLogger) (*Loop, error) {
	r := &rules.Rules{}
	if err := json.Unmarshal(m.Rules, r); err != nil {
		return nil, fmt.Errorf("manifest rules: %w", err)
	}
	if m.RulesDigest != "" && r.Digest() != m.RulesDigest {
		return nil, fmt.Errorf("manifest rules digest mismatch")
	}
	return New(Config{
		ID:                 m.SessionID,
		Seed:               m.Seed,
		TickRateHz:         m.TickRateHz,
		AIInterval:         time.Duration(m.AIIntervalMs) * time.Millisecond,
		SnapshotEveryTicks: m.SnapshotEveryTicks,
	}, r, log)
}
