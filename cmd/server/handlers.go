package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/persistence/indexdb"
	"whiteout.ai/internal/persistence/offsite"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/transport/ws"
)

type httpDeps struct {
	loop   *loop.Loop
	ws     *ws.Server
	index  runtimeIndex
	mirror *offsite.Mirror
	admin  bool
	log    *logrus.Entry
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", d.metricsHandler)

	if d.admin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", loopbackOnly(d.stateHandler))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(d.snapshotHandler))
		mux.HandleFunc("/admin/v1/events", loopbackOnly(d.eventsHandler))
	} else {
		d.log.Info("admin endpoints disabled (WO_ENABLE_ADMIN_HTTP=false)")
	}
	if d.ws != nil {
		mux.HandleFunc("/v1/ws", d.ws.Handler())
	}
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (d httpDeps) metricsHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	id := d.loop.ID()
	m := d.loop.Metrics()
	tick := d.loop.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP whiteout_session_tick Current session tick.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_tick gauge\n")
	fmt.Fprintf(rw, "whiteout_session_tick{session=%q} %d\n", id, tick)

	fmt.Fprintf(rw, "# HELP whiteout_session_entities Live entities by kind.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_entities gauge\n")
	kinds := make([]string, 0, len(m.Entities))
	for k := range m.Entities {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(rw, "whiteout_session_entities{session=%q,kind=%q} %d\n", id, k, m.Entities[k])
	}

	var clients int64
	if d.ws != nil {
		clients = d.ws.Clients()
	}
	fmt.Fprintf(rw, "# HELP whiteout_session_clients Connected websocket clients.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_clients gauge\n")
	fmt.Fprintf(rw, "whiteout_session_clients{session=%q} %d\n", id, clients)

	fmt.Fprintf(rw, "# HELP whiteout_session_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_step_ms gauge\n")
	fmt.Fprintf(rw, "whiteout_session_step_ms{session=%q} %.3f\n", id, m.StepMS)

	gameOver := 0
	if m.GameOver {
		gameOver = 1
	}
	fmt.Fprintf(rw, "# HELP whiteout_session_game_over 1 once the player is down.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_game_over gauge\n")
	fmt.Fprintf(rw, "whiteout_session_game_over{session=%q} %d\n", id, gameOver)

	fmt.Fprintf(rw, "# HELP whiteout_session_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_session_queue_depth gauge\n")
	fmt.Fprintf(rw, "whiteout_session_queue_depth{session=%q,queue=%q} %d\n", id, "inputs", m.QueueDepths.Inputs)
	fmt.Fprintf(rw, "whiteout_session_queue_depth{session=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "whiteout_session_queue_depth{session=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)

	counters := []struct {
		name, help string
		v          uint64
	}{
		{"whiteout_kills_total", "Entities killed.", m.Kills},
		{"whiteout_hits_total", "Damaging hits landed.", m.Hits},
		{"whiteout_gathers_total", "Successful worker gathers.", m.Gathers},
		{"whiteout_transactions_ok_total", "Completed building transactions and actions.", m.TxOK},
		{"whiteout_transactions_denied_total", "Denied building transactions and actions.", m.TxDenied},
	}
	for _, c := range counters {
		fmt.Fprintf(rw, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(rw, "%s{session=%q} %d\n", c.name, id, c.v)
	}

	if d.index != nil {
		writeIndexMetrics(rw, id, d.index.Stats())
	}
	if d.mirror != nil {
		st := d.mirror.Stats()
		fmt.Fprintf(rw, "# HELP whiteout_offsite_uploads_total Offsite uploads by result.\n")
		fmt.Fprintf(rw, "# TYPE whiteout_offsite_uploads_total counter\n")
		fmt.Fprintf(rw, "whiteout_offsite_uploads_total{session=%q,result=%q} %d\n", id, "ok", st.UploadedTotal)
		fmt.Fprintf(rw, "whiteout_offsite_uploads_total{session=%q,result=%q} %d\n", id, "failed", st.FailedTotal)
		fmt.Fprintf(rw, "whiteout_offsite_uploads_total{session=%q,result=%q} %d\n", id, "dropped", st.DroppedTotal)
	}
}

func writeIndexMetrics(rw http.ResponseWriter, id string, s indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP whiteout_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "whiteout_index_queue_depth{session=%q} %d\n", id, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP whiteout_index_dropped_total Index records dropped under backpressure.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_index_dropped_total counter\n")
	fmt.Fprintf(rw, "whiteout_index_dropped_total{session=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "whiteout_index_dropped_total{session=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "whiteout_index_dropped_total{session=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)

	fmt.Fprintf(rw, "# HELP whiteout_index_flush_fail_total Failed index flushes.\n")
	fmt.Fprintf(rw, "# TYPE whiteout_index_flush_fail_total counter\n")
	fmt.Fprintf(rw, "whiteout_index_flush_fail_total{session=%q} %d\n", id, s.FlushFailTotal)
}

func (d httpDeps) stateHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		SessionID string         `json:"session_id"`
		Tick      uint64         `json:"tick"`
		Metrics   loop.Metrics   `json:"metrics"`
		Snapshot  *loop.Snapshot `json:"snapshot,omitempty"`
		Index     *indexdb.Stats `json:"index,omitempty"`
		Offsite   *offsite.Stats `json:"offsite,omitempty"`
	}{
		SessionID: d.loop.ID(),
		Tick:      d.loop.CurrentTick(),
		Metrics:   d.loop.Metrics(),
		Snapshot:  d.loop.Latest(),
	}
	if d.index != nil {
		st := d.index.Stats()
		resp.Index = &st
	}
	if d.mirror != nil {
		st := d.mirror.Stats()
		resp.Offsite = &st
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

func (d httpDeps) snapshotHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tick, err := d.loop.RequestSnapshot(ctx)
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
}

func (d httpDeps) eventsHandler(rw http.ResponseWriter, r *http.Request) {
	q, ok := d.index.(eventQuerier)
	if !ok {
		http.Error(rw, "event index not available", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	typ := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type")))
	rows, err := q.RecentEvents(r.Context(), typ, limit)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"events": rows})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
