package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of a session: ticks, domain
// events, snapshots and the rule configuration. The JSONL logs stay the
// source of truth; writes are queued and dropped under backpressure.
type SQLiteIndex struct {
	db  *sql.DB
	log *logrus.Entry

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	drops  dropCounters
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     loop.TickLogEntry
	audit    loop.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick         uint64
	Path         string
	Seed         int64
	RulesDigest  string
	Entities     int
	Hostiles     int
	Followers    int
	PlayerHealth int
	Experience   int
	GameOver     bool
}

func OpenSQLite(path string, log logrus.FieldLogger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: logger.Component(log, "indexdb"),
		// Large buffer: a big fight emits many events in one tick.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			now_ms INTEGER NOT NULL,
			digest TEXT NOT NULL,
			attack INTEGER NOT NULL,
			action TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			now_ms INTEGER NOT NULL,
			type TEXT NOT NULL,
			entity_id TEXT,
			source_id TEXT,
			amount INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity_tick ON events(entity_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			rules_digest TEXT NOT NULL,
			entities INTEGER NOT NULL,
			hostiles INTEGER NOT NULL,
			followers INTEGER NOT NULL,
			player_health INTEGER NOT NULL,
			experience INTEGER NOT NULL,
			game_over INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return s.drops.stats(len(s.ch), cap(s.ch))
}

func (s *SQLiteIndex) enqueue(r req, drop *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drop.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry loop.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.drops.tick)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry loop.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.drops.audit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: newSnapshotRow(path, snap)}, &s.drops.snapshot)
}

func newSnapshotRow(path string, snap snapshot.SnapshotV1) snapshotRow {
	r := snapshotRow{
		Tick:        snap.Header.Tick,
		Path:        path,
		Seed:        snap.Seed,
		RulesDigest: snap.RulesDigest,
		Entities:    len(snap.Entities),
		Experience:  snap.Player.Experience,
		GameOver:    snap.GameOver,
	}
	for _, e := range snap.Entities {
		switch e.Kind {
		case "hostile":
			r.Hostiles++
		case "follower":
			r.Followers++
		}
		if e.ID == snap.Player.EntityID {
			r.PlayerHealth = e.Health
		}
	}
	return r
}

// UpsertConfigs stores the rule configuration and tuning in force.
func (s *SQLiteIndex) UpsertConfigs(r *rules.Rules, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	rows, err := configRows(r, tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.Exec(row.name, row.digest, string(row.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// EventRow is one indexed domain event.
type EventRow struct {
	Tick     uint64          `json:"tick"`
	Seq      int             `json:"seq"`
	NowMS    int64           `json:"now_ms"`
	Type     string          `json:"type"`
	EntityID string          `json:"entity_id,omitempty"`
	SourceID string          `json:"source_id,omitempty"`
	Amount   int             `json:"amount,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Raw      json.RawMessage `json:"raw"`
}

// RecentEvents returns up to limit of the newest events, optionally of one
// type, newest first.
func (s *SQLiteIndex) RecentEvents(ctx context.Context, typ string, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT tick,seq,now_ms,type,COALESCE(entity_id,''),COALESCE(source_id,''),amount,COALESCE(reason,''),raw_json FROM events`
	args := []any{}
	if typ != "" {
		q += ` WHERE type = ?`
		args = append(args, typ)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRow
	for rows.Next() {
		var r EventRow
		var raw string
		if err := rows.Scan(&r.Tick, &r.Seq, &r.NowMS, &r.Type, &r.EntityID, &r.SourceID, &r.Amount, &r.Reason, &raw); err != nil {
			return nil, err
		}
		r.Raw = json.RawMessage(raw)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared on db; executed within the batch tx.
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,now_ms,digest,attack,action,raw_json) VALUES(?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(tick,seq,now_ms,type,entity_id,source_id,amount,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,rules_digest,entities,hostiles,followers,player_health,experience,game_over) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.WithError(err).Warn("begin tx")
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.WithError(err).Warn("commit")
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.WithError(err).Warn("index write failed, rolling back batch")
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	handle := func(r req) {
		begin()
		if tx == nil {
			return
		}
		var err error
		switch r.kind {
		case reqTick:
			err = execTick(tx, insertTick, r.tick)
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			err = execAudit(tx, insertEvent, a, auditSeq)
			auditSeq++
		case reqSnapshot:
			err = execSnapshot(tx, insertSnapshot, r.snapshot)
		}
		if err != nil {
			rollback(err)
			return
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// Idle batches still reach disk within commitMaxWait.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}

func execTick(tx *sql.Tx, stmt *sql.Stmt, t loop.TickLogEntry) error {
	if stmt == nil {
		return nil
	}
	raw, _ := json.Marshal(t)
	attack, action := 0, ""
	if t.Input != nil {
		if t.Input.Attack {
			attack = 1
		}
		action = inputAction(*t.Input)
	}
	_, err := tx.Stmt(stmt).Exec(int64(t.Tick), t.Now.Milliseconds(), t.Digest, attack, action, string(raw))
	return err
}

func execAudit(tx *sql.Tx, stmt *sql.Stmt, a loop.AuditEntry, seq int) error {
	if stmt == nil {
		return nil
	}
	raw, _ := json.Marshal(a.Event)
	ev := a.Event
	_, err := tx.Stmt(stmt).Exec(int64(a.Tick), seq, a.Now, string(ev.Type), ev.EntityID, ev.SourceID, ev.Amount, ev.Reason, string(raw))
	return err
}

func execSnapshot(tx *sql.Tx, stmt *sql.Stmt, sn snapshotRow) error {
	if stmt == nil {
		return nil
	}
	gameOver := 0
	if sn.GameOver {
		gameOver = 1
	}
	_, err := tx.Stmt(stmt).Exec(int64(sn.Tick), sn.Path, sn.Seed, sn.RulesDigest,
		sn.Entities, sn.Hostiles, sn.Followers, sn.PlayerHealth, sn.Experience, gameOver)
	return err
}

// inputAction summarizes the discrete action of a tick input.
func inputAction(in loop.Input) string {
	switch {
	case in.Interact != "":
		return "interact:" + in.Interact
	case in.Build != nil:
		return "build:" + in.Build.Type
	case in.Assign != nil:
		return "assign:" + in.Assign.WorkerID + ">" + in.Assign.BuildingID
	case in.Gather != "":
		return "gather:" + in.Gather
	}
	return ""
}
