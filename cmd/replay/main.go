package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	persistlog "whiteout.ai/internal/persistence/log"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
)

func main() {
	var (
		sessionDir = flag.String("dir", "", "session directory (overrides -data/-session)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		sessionID  = flag.String("session", "", "session id under <data>/sessions")
		snapPath   = flag.String("snapshot", "", "start from this .snap.zst instead of the session manifest")
		toTick     = flag.Uint64("to_tick", 0, "stop after this tick (inclusive, optional)")
	)
	flag.Parse()

	log := logger.Component(logger.New(logger.Options{Output: os.Stderr}), "replay")

	dir := *sessionDir
	if dir == "" {
		if *sessionID == "" {
			fmt.Fprintln(os.Stderr, "missing -dir or -session")
			os.Exit(2)
		}
		dir = filepath.Join(*dataDir, "sessions", *sessionID)
	}

	l, err := start(dir, *snapPath, log)
	if err != nil {
		log.WithError(err).Fatal("start")
	}
	res, err := replay(l, dir, *toTick)
	if err != nil {
		log.WithError(err).WithField("checked", res.Checked).Fatal("replay failed")
	}
	log.WithFields(logrus.Fields{
		"checked":   res.Checked,
		"from_tick": res.FromTick,
		"last_tick": res.LastTick,
		"game_over": l.GameOver(),
	}).Info("replay ok")
}

// start builds the session the log should be replayed against: from a
// snapshot when given, otherwise from tick 0 via the session manifest.
func start(dir, snapPath string, log logrus.FieldLogger) (*loop.Loop, error) {
	if snapPath != "" {
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		return loop.FromSnapshot(snap, log)
	}
	m, err := snapshot.ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return loop.FromManifest(m, log)
}

type result struct {
	FromTick uint64
	LastTick uint64
	Checked  uint64
}

var errDone = errors.New("done")

// replay steps l through every logged tick after its current tick and
// checks each resulting digest against the recorded one.
func replay(l *loop.Loop, dir string, toTick uint64) (result, error) {
	res := result{FromTick: l.CurrentTick() + 1}
	err := persistlog.ReadTicks(dir, func(e loop.TickLogEntry) error {
		if e.Tick <= l.CurrentTick() {
			return nil
		}
		if toTick != 0 && e.Tick > toTick {
			return errDone
		}
		if want := l.CurrentTick() + 1; e.Tick != want {
			return fmt.Errorf("tick gap: want=%d got=%d", want, e.Tick)
		}
		var in loop.Input
		if e.Input != nil {
			in = *e.Input
		}
		got := l.Step(in, e.Now).Digest
		res.Checked++
		res.LastTick = e.Tick
		if got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", e.Tick, got, e.Digest)
		}
		return nil
	})
	if errors.Is(err, errDone) {
		err = nil
	}
	if err == nil && res.Checked == 0 {
		err = errors.New("no ticks to replay")
	}
	return res, err
}
