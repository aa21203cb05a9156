package main

import (
	"errors"
	"testing"

	"whiteout.ai/internal/sim/loop"
)

type failingLog struct {
	err   error
	calls int
}

func (f *failingLog) WriteTick(loop.TickLogEntry) error { f.calls++; return f.err }
func (f *failingLog) WriteAudit(loop.AuditEntry) error { f.calls++; return f.err }

func TestMultiLoggersJoinErrors(t *testing.T) {
	errDisk := errors.New("disk full")
	errIdx := errors.New("index closed")

	a, b := &failingLog{err: errDisk}, &failingLog{err: errIdx}
	err := multiTickLogger{a: a, b: b}.WriteTick(loop.TickLogEntry{Tick: 1})
	if !errors.Is(err, errDisk) || !errors.Is(err, errIdx) {
		t.Fatalf("tick err=%v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("both loggers should be written: %d %d", a.calls, b.calls)
	}

	ok := &failingLog{}
	err = multiAuditLogger{a: ok, b: b}.WriteAudit(loop.AuditEntry{Tick: 1})
	if !errors.Is(err, errIdx) || errors.Is(err, errDisk) {
		t.Fatalf("audit err=%v", err)
	}
	if err := (multiTickLogger{a: ok}).WriteTick(loop.TickLogEntry{Tick: 2}); err != nil {
		t.Fatalf("nil second logger: %v", err)
	}
}
