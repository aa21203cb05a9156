package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/logger"
	persistlog "whiteout.ai/internal/persistence/log"
	"whiteout.ai/internal/persistence/offsite"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/tuning"
	"whiteout.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		sessionID  = flag.String("session", "session_1", "session id")
		seed       = flag.Int64("seed", 0, "session seed for a fresh session (0: use tuning)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		rulesName  = flag.String("rules", "", "rule preset override (survival|economy)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ticks/audit + configs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	base := logger.New(logger.Options{})
	log := base.WithField("component", "server").WithField("session", *sessionID)

	sessionDir := filepath.Join(*dataDir, "sessions", *sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		log.WithError(err).Fatal("create session dir")
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		p, _, err := snapshot.Latest(sessionDir)
		if err != nil {
			log.WithError(err).Fatal("scan snapshots")
		}
		snapshotToLoad = p
	}

	// Tuning is required for a fresh session; a snapshot carries its own.
	tune, err := tuning.Load(tp)
	if err != nil {
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Info("tuning not found; using defaults")
		tune = tuning.Defaults()
	}
	if *rulesName != "" {
		tune.Rules = *rulesName
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(sessionDir, *sessionID, *disableDB, base)
	if err != nil {
		log.WithError(err).Fatal("open index backend")
	}
	if idx != nil {
		defer idx.Close()
	}

	l, err := openSession(sessionDir, *sessionID, snapshotToLoad, tune, *configDir, base)
	if err != nil {
		log.WithError(err).Fatal("open session")
	}
	if idx != nil {
		if err := idx.UpsertConfigs(l.Rules(), tune); err != nil {
			log.WithError(err).Warn("index backend: upsert configs")
		}
	}

	mirror, err := openOffsite(*dataDir, base)
	if err != nil {
		log.WithError(err).Fatal("open offsite mirror")
	}
	defer mirror.Close()
	mirror.Enqueue(snapshot.ManifestPath(sessionDir))

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(sessionDir)
	auditLog := persistlog.NewAuditLogger(sessionDir)
	defer tickLog.Close()
	defer auditLog.Close()
	var tickIdx loop.TickLogger
	var auditIdx loop.AuditLogger
	if idx != nil {
		tickIdx, auditIdx = idx, idx
	}
	l.SetTickLogger(multiTickLogger{a: tickLog, b: tickIdx})
	l.SetAuditLogger(multiAuditLogger{a: auditLog, b: auditIdx})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	l.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, sessionDir, snapCh, idx, mirror, log)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("loop stopped")
		}
	}()

	wsSrv := ws.NewServer(l, ws.Options{
		InputWindowTicks: uint64(tune.RateLimits.InputWindowTicks),
		InputMax:         tune.RateLimits.InputMax,
	}, base)
	mux := newMux(httpDeps{
		loop:   l,
		ws:     wsSrv,
		index:  idx,
		mirror: mirror,
		admin:  envBool("WO_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		log:    log,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.WithField("addr", *addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("ListenAndServe")
	}
	<-loopDone
	log.Info("shutdown complete")
}

// openSession resumes from a snapshot when one is given, otherwise starts
// a fresh session and records its manifest.
func openSession(sessionDir, sessionID, snapshotPath string, tune tuning.Tuning, configDir string, log logrus.FieldLogger) (*loop.Loop, error) {
	if snapshotPath != "" {
		snap, err := snapshot.ReadSnapshot(snapshotPath)
		if err != nil {
			return nil, err
		}
		if snap.Header.SessionID != "" && snap.Header.SessionID != sessionID {
			return nil, errors.New("snapshot session id mismatch: flag=" + sessionID + " snap=" + snap.Header.SessionID)
		}
		return loop.FromSnapshot(snap, log)
	}

	if _, err := os.Stat(snapshot.ManifestPath(sessionDir)); err == nil {
		return nil, errors.New("session " + sessionID + " already started but has no snapshot; pick a new -session")
	}
	r, err := tune.LoadRules(configDir)
	if err != nil {
		return nil, err
	}
	l, err := loop.New(loop.Config{
		ID:                 sessionID,
		Seed:               tune.Seed,
		TickRateHz:         tune.TickRateHz,
		AIInterval:         tune.AIInterval(),
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}, r, log)
	if err != nil {
		return nil, err
	}
	if _, err := snapshot.WriteManifest(sessionDir, l.Manifest(time.Now())); err != nil {
		return nil, err
	}
	return l, nil
}

func writeSnapshots(ctx context.Context, sessionDir string, ch <-chan snapshot.SnapshotV1, idx runtimeIndex, mirror *offsite.Mirror, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.Path(sessionDir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				log.WithError(err).Warn("snapshot write")
				continue
			}
			log.WithField("tick", snap.Header.Tick).Info("snapshot written")
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			mirror.Enqueue(path)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
