package loop

import (
	"context"
	"errors"
	"time"
)

// ViewerJoin registers a snapshot subscriber. Out receives the latest
// snapshot after every tick; a slow reader only ever misses intermediate
// ticks.
type ViewerJoin struct {
	ID  string
	Out chan *Snapshot
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

func (l *Loop) Inputs() chan<- Input    { return l.inputs }
func (l *Loop) Join() chan<- ViewerJoin { return l.join }
func (l *Loop) Leave() chan<- string    { return l.leave }

// Run drives Step from a ticker until ctx is done or Stop is called.
// Simulated time continues from the session's current time and follows
// the monotonic clock.
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(l.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	base := l.now
	start := time.Now()
	l.log.WithField("tick", l.CurrentTick()).Info("loop started")

	var pending Input
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case in := <-l.inputs:
			pending = pending.Merge(in)
		case req := <-l.join:
			l.viewers[req.ID] = req.Out
			if s := l.Latest(); s != nil {
				sendLatest(req.Out, s)
			}
		case id := <-l.leave:
			delete(l.viewers, id)
		case req := <-l.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			snap := l.Step(pending, base+time.Since(start))
			for _, out := range l.viewers {
				sendLatest(out, snap)
			}
			l.handleAdminSnapshotRequests(pendingAdmin)
			// Held movement carries over until the client reports a change.
			pending = Input{Movement: pending.Movement}
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (l *Loop) Stop() { close(l.stop) }

func sendLatest(ch chan *Snapshot, s *Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// RequestSnapshot asks the loop goroutine to push a snapshot to the sink.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (l *Loop) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan adminSnapshotResp, 1)
	select {
	case l.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (l *Loop) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	resp := adminSnapshotResp{Tick: l.tick.Load()}
	if l.snapshotSink == nil {
		resp.Err = "snapshot sink not configured"
	} else {
		select {
		case l.snapshotSink <- l.ExportSnapshot():
		default:
			resp.Err = "snapshot sink backpressure"
		}
	}
	for _, r := range reqs {
		select {
		case r.Resp <- resp:
		default:
			// Caller gave up; never block the loop.
		}
	}
}
