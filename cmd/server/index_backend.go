package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/persistence/indexdb"
	"whiteout.ai/internal/persistence/snapshot"
	"whiteout.ai/internal/sim/loop"
	"whiteout.ai/internal/sim/rules"
	"whiteout.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	loop.TickLogger
	loop.AuditLogger
	Close() error
	UpsertConfigs(r *rules.Rules, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

// eventQuerier is implemented by index backends that can be read back.
type eventQuerier interface {
	RecentEvents(ctx context.Context, typ string, limit int) ([]indexdb.EventRow, error)
}

func openRuntimeIndex(sessionDir, sessionID string, disableDB bool, log logrus.FieldLogger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("WO_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(sessionDir, "index", "session.sqlite"), log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("WO_INDEX_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("WO_INDEX_BACKEND=http but WO_INDEX_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("WO_INDEX_TOKEN")),
			SessionID:     sessionID,
			BatchSize:     envInt("WO_INDEX_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("WO_INDEX_FLUSH_MS", 500)) * time.Millisecond,
			Log:           log,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported WO_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a loop.TickLogger
	b loop.TickLogger
}

// WriteTick writes to both loggers and joins their errors.
func (m multiTickLogger) WriteTick(entry loop.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteTick(entry)
	}
	if m.b != nil {
		errB = m.b.WriteTick(entry)
	}
	return errors.Join(errA, errB)
}

type multiAuditLogger struct {
	a loop.AuditLogger
	b loop.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry loop.AuditEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		errB = m.b.WriteAudit(entry)
	}
	return errors.Join(errA, errB)
}
