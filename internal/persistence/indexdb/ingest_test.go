package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/world"
)

func TestIngestIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	applied := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}

		var body struct {
			Events []ingestEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		applied += len(body.Events)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{
		Endpoint:      srv.URL,
		SessionID:     "session_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenIngest: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.WriteTick(loop.TickLogEntry{Tick: 123, Digest: "abc"}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := applied >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	finalApplied := applied
	finalReqCount := reqCount
	mu.Unlock()
	if finalApplied < 1 {
		t.Fatalf("expected retained batch to be eventually delivered; applied=%d reqCount=%d", finalApplied, finalReqCount)
	}

	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.DroppedTotal() != 0 {
		t.Fatalf("unexpected drops: %d", st.DroppedTotal())
	}
}

func TestIngestIndex_AuditSeqAndSessionTag(t *testing.T) {
	var mu sync.Mutex
	var got []ingestEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-wo-index-token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Events []struct {
				Kind      string          `json:"kind"`
				SessionID string          `json:"session_id"`
				Payload   json.RawMessage `json:"payload"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		for _, ev := range body.Events {
			got = append(got, ingestEvent{Kind: ev.Kind, SessionID: ev.SessionID, Payload: ev.Payload})
		}
		mu.Unlock()
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{Endpoint: srv.URL, Token: "secret", SessionID: "s9", BatchSize: 64, FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("OpenIngest: %v", err)
	}
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 4, Event: world.Event{Type: world.EventHit}})
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 4, Event: world.Event{Type: world.EventDeath}})
	_ = idx.WriteAudit(loop.AuditEntry{Tick: 5, Event: world.Event{Type: world.EventReward}})
	// Close flushes the partial batch.
	_ = idx.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("events=%d want=3", len(got))
	}
	wantSeq := []int{0, 1, 0}
	for i, ev := range got {
		if ev.Kind != "audit" || ev.SessionID != "s9" {
			t.Fatalf("event %d kind=%q session=%q", i, ev.Kind, ev.SessionID)
		}
		var p struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(ev.Payload.(json.RawMessage), &p); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if p.Seq != wantSeq[i] {
			t.Fatalf("event %d seq=%d want=%d", i, p.Seq, wantSeq[i])
		}
	}
}

func TestOpenIngest_RequiresEndpointAndSession(t *testing.T) {
	if _, err := OpenIngest(IngestConfig{SessionID: "s"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenIngest(IngestConfig{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty session")
	}
}
