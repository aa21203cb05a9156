// Package loop owns one game session: the world state, the ledger and the
// resolvers, advanced one tick at a time by a single goroutine.
package loop

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/ai"
	"whiteout.ai/internal/sim/combat"
	"whiteout.ai/internal/sim/interact"
	"whiteout.ai/internal/sim/ledger"
	"whiteout.ai/internal/sim/mathx"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/world"
)

type Config struct {
	ID                 string
	Seed               int64
	TickRateHz         int
	AIInterval         time.Duration
	SnapshotEveryTicks int
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry is everything needed to replay one tick and check it.
type TickLogEntry struct {
	Tick   uint64        `json:"tick"`
	Now    time.Duration `json:"now"`
	Input  *Input        `json:"input,omitempty"`
	Digest string        `json:"digest"`
}

type AuditEntry struct {
	Tick  uint64      `json:"tick"`
	Now   int64       `json:"now_ms"`
	Event world.Event `json:"event"`
}

// Loop is a single-threaded authoritative session. State is touched only by
// Step, which Run calls from its own goroutine; other goroutines read the
// published Snapshot and Metrics.
type Loop struct {
	cfg   Config
	rules *rules.Rules
	log   *logrus.Entry

	state    *world.State
	ledger   *ledger.Ledger
	combat   *combat.Resolver
	ai       *ai.Controller
	interact *interact.Resolver

	tick     atomic.Uint64
	now      time.Duration
	gameOver bool

	latest  atomic.Pointer[Snapshot]
	metrics atomic.Value

	inputs chan Input
	join   chan ViewerJoin
	leave  chan string
	admin  chan adminSnapshotReq
	stop   chan struct{}

	viewers map[string]chan *Snapshot

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1
}

// New builds a fresh session from a rule configuration and publishes the
// tick-0 snapshot.
func New(cfg Config, r *rules.Rules, log logrus.FieldLogger) (*Loop, error) {
	l, err := newLoop(cfg, r, log)
	if err != nil {
		return nil, err
	}
	if err := r.Populate(l.state); err != nil {
		return nil, fmt.Errorf("populate: %w", err)
	}
	l.ledger = ledger.New(r.StartingResources)
	l.wire()
	l.publish(l.buildSnapshot(0, l.state.DrainEvents(), l.Digest()))
	return l, nil
}

func newLoop(cfg Config, r *rules.Rules, log logrus.FieldLogger) (*Loop, error) {
	if r == nil {
		return nil, errors.New("loop: rules are required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("loop: tick rate must be > 0")
	}
	if cfg.ID == "" {
		cfg.ID = "session"
	}
	return &Loop{
		cfg:     cfg,
		rules:   r,
		log:     logger.Component(log, "loop").WithField("session", cfg.ID),
		state:   world.NewState(),
		inputs:  make(chan Input, 256),
		join:    make(chan ViewerJoin, 64),
		leave:   make(chan string, 64),
		admin:   make(chan adminSnapshotReq, 16),
		stop:    make(chan struct{}),
		viewers: map[string]chan *Snapshot{},
	}, nil
}

func (l *Loop) wire() {
	base := l.log
	l.combat = combat.New(l.state, l.ledger, l.rules, base)
	l.ai = ai.New(l.state, l.ledger, l.rules, l.combat, ai.Config{Seed: l.cfg.Seed, Interval: l.cfg.AIInterval}, base)
	l.interact = interact.New(l.state, l.ledger, l.rules, l.cfg.Seed, base)
}

func (l *Loop) SetTickLogger(t TickLogger)                      { l.tickLogger = t }
func (l *Loop) SetAuditLogger(a AuditLogger)                    { l.auditLogger = a }
func (l *Loop) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { l.snapshotSink = ch }

func (l *Loop) ID() string          { return l.cfg.ID }
func (l *Loop) Config() Config      { return l.cfg }
func (l *Loop) Rules() *rules.Rules { return l.rules }
// CurrentTick is the last completed tick; 0 before the first Step.
func (l *Loop) CurrentTick() uint64 { return l.tick.Load() }

// Latest returns the most recently published snapshot.
func (l *Loop) Latest() *Snapshot { return l.latest.Load() }

func (l *Loop) publish(s *Snapshot) { l.latest.Store(s) }

// Step advances the session by one tick with the given intent at simulated
// time now. It is the only mutator of session state. Calling it directly
// (instead of Run) gives deterministic, clock-free stepping for tests and
// replay.
func (l *Loop) Step(in Input, now time.Duration) *Snapshot {
	start := time.Now()
	tick := l.tick.Load() + 1
	if now < l.now {
		now = l.now
	}
	l.now = now

	if !l.gameOver {
		l.movePlayer(in.Movement)
	}
	l.ai.Step(now, tick)
	if !l.gameOver {
		l.playerAttack(in.Attack, now)
		l.playerActions(in, tick)
	}
	if l.state.Player.Down && !l.gameOver {
		l.gameOver = true
		l.log.WithField("tick", tick).Info("player down, game over")
	}

	events := l.state.DrainEvents()
	digest := l.Digest()
	snap := l.buildSnapshot(tick, events, digest)
	l.publish(snap)

	if l.tickLogger != nil {
		entry := TickLogEntry{Tick: tick, Now: now, Digest: digest}
		if !in.IsZero() {
			c := in
			entry.Input = &c
		}
		if err := l.tickLogger.WriteTick(entry); err != nil {
			l.log.WithError(err).Warn("tick log write failed")
		}
	}
	if l.auditLogger != nil {
		for _, ev := range events {
			if err := l.auditLogger.WriteAudit(AuditEntry{Tick: tick, Now: now.Milliseconds(), Event: ev}); err != nil {
				l.log.WithError(err).Warn("audit write failed")
				break
			}
		}
	}

	l.tick.Store(tick)

	if l.snapshotSink != nil && l.cfg.SnapshotEveryTicks > 0 && tick%uint64(l.cfg.SnapshotEveryTicks) == 0 {
		select {
		case l.snapshotSink <- l.ExportSnapshot():
		default:
			l.log.WithField("tick", tick).Warn("snapshot sink backed up, dropping")
		}
	}
	l.storeMetrics(float64(time.Since(start).Microseconds()) / 1000.0)
	return snap
}

func (l *Loop) movePlayer(m Movement) {
	p := l.state.PlayerEntity()
	if !p.Alive() {
		return
	}
	dir := m.Direction()
	if dir == (world.Vec2{}) {
		return
	}
	next := p.Pos.Add(dir.Scale(p.Speed))
	if h := l.rules.WorldHalfExtent; h > 0 {
		next = world.Vec2{X: mathx.Clamp(next.X, -h, h), Z: mathx.Clamp(next.Z, -h, h)}
	}
	p.Facing = p.Pos.Heading(next)
	p.Pos = next
}

func (l *Loop) playerAttack(requested bool, now time.Duration) {
	if !requested {
		return
	}
	p := l.state.PlayerEntity()
	if !p.Alive() || !p.CooldownReady(now) {
		return
	}
	p.MarkAction(now)
	l.combat.PlayerSweep(now)
}

func (l *Loop) playerActions(in Input, tick uint64) {
	// Failures are reported as DENIED events by the resolver.
	if in.Interact != "" {
		_, _ = l.interact.Interact(in.Interact, tick)
	}
	if b := in.Build; b != nil {
		_, _ = l.interact.Build(b.Type, world.Vec2{X: b.X, Z: b.Z})
	}
	if a := in.Assign; a != nil {
		_, _ = l.interact.Assign(a.WorkerID, a.BuildingID)
	}
	if in.Gather != "" {
		_, _ = l.interact.Gather(in.Gather)
	}
}

// GameOver reports whether the player has been removed.
func (l *Loop) GameOver() bool {
	if s := l.Latest(); s != nil {
		return s.GameOver
	}
	return false
}
