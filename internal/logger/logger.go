// Package logger builds the process logrus logger from the environment.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Level is a logrus level name; empty reads LOG_LEVEL, then "info".
	Level string
	// Format is "json" or "text"; empty reads LOG_FORMAT.
	Format string
	Output io.Writer
}

func New(opts Options) *logrus.Logger {
	l := logrus.New()

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if lv, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lv)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	format := opts.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}
	return l
}

// Discard returns an entry that drops everything. Used as the default for
// library components constructed without a logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// Component tags every line with the emitting subsystem.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	if l == nil {
		return Discard()
	}
	return l.WithField("component", name)
}
