package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"whiteout.ai/internal/persistence/offsite"
)

// openOffsite returns nil when WO_OFFSITE_ENDPOINT is unset.
func openOffsite(dataDir string, log logrus.FieldLogger) (*offsite.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("WO_OFFSITE_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	b, err := offsite.NewBucket(offsite.BucketConfig{
		Endpoint:  endpoint,
		Bucket:    os.Getenv("WO_OFFSITE_BUCKET"),
		Region:    os.Getenv("WO_OFFSITE_REGION"),
		AccessKey: os.Getenv("WO_OFFSITE_ACCESS_KEY"),
		SecretKey: os.Getenv("WO_OFFSITE_SECRET_KEY"),
	})
	if err != nil {
		return nil, err
	}
	return offsite.NewMirror(b, offsite.MirrorConfig{
		Root:    dataDir,
		Prefix:  os.Getenv("WO_OFFSITE_PREFIX"),
		Workers: envInt("WO_OFFSITE_WORKERS", 1),
		Queue:   envInt("WO_OFFSITE_QUEUE", 256),
	}, log), nil
}
