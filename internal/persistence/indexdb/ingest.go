package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/tuning"
)

type IngestConfig struct {
	Endpoint      string
	Token         string
	SessionID     string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxPending bounds events held for retry after failed flushes.
	MaxPending int
	Log        logrus.FieldLogger
}

// IngestIndex ships index events in JSON batches to a remote collector.
// A failed batch is kept and retried on the next flush.
type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client
	log        *logrus.Entry

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	drops  dropCounters

	flushFail   atomic.Uint64
	pendingDrop atomic.Uint64

	auditMu       sync.Mutex
	lastAuditTick uint64
	auditSeq      int
}

type ingestEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
}

type ingestAuditPayload struct {
	Seq int `json:"seq"`
	loop.AuditEntry
}

type ingestConfigPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.SessionID = strings.TrimSpace(cfg.SessionID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 16384
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		log:        logger.Component(cfg.Log, "ingest").WithField("endpoint", cfg.Endpoint),
		ch:         make(chan ingestEvent, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	st := d.drops.stats(len(d.ch), cap(d.ch))
	st.FlushFailTotal = d.flushFail.Load()
	st.PendingDropTotal = d.pendingDrop.Load()
	return st
}

func (d *IngestIndex) WriteTick(entry loop.TickLogEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	d.enqueue(ingestEvent{Kind: "tick", Payload: entry}, &d.drops.tick)
	return nil
}

func (d *IngestIndex) WriteAudit(entry loop.AuditEntry) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	p := ingestAuditPayload{Seq: d.nextAuditSeq(entry.Tick), AuditEntry: entry}
	d.enqueue(ingestEvent{Kind: "audit", Payload: p}, &d.drops.audit)
	return nil
}

func (d *IngestIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(ingestEvent{Kind: "snapshot", Payload: newSnapshotRow(path, snap)}, &d.drops.snapshot)
}

func (d *IngestIndex) UpsertConfigs(r *rules.Rules, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	rows, err := configRows(r, tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, row := range rows {
		d.enqueue(ingestEvent{Kind: "config", Payload: ingestConfigPayload{
			Name:      row.name,
			Digest:    row.digest,
			JSON:      string(row.data),
			UpdatedAt: now,
		}}, &d.drops.config)
	}
	return nil
}

func (d *IngestIndex) nextAuditSeq(tick uint64) int {
	d.auditMu.Lock()
	defer d.auditMu.Unlock()
	if tick != d.lastAuditTick {
		d.lastAuditTick = tick
		d.auditSeq = 0
	}
	seq := d.auditSeq
	d.auditSeq++
	return seq
}

func (d *IngestIndex) enqueue(ev ingestEvent, drop *atomic.Uint64) {
	ev.SessionID = d.cfg.SessionID
	select {
	case d.ch <- ev:
	default:
		drop.Add(1)
		d.log.WithField("kind", ev.Kind).Debug("queue full, dropping")
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.log.WithError(err).WithField("batch", len(batch)).Warn("flush failed")
			if over := len(batch) - d.cfg.MaxPending; over > 0 {
				d.pendingDrop.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-wo-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(25*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}
