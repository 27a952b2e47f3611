// Package logging builds the glog loggers used by the binaries.
package logging

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-signup/config"
)

// New returns a pretty printing root logger named name at the configured level.
func New(name string, cfg config.LogConfig) *glog.BaseLogger {
	level := glog.WithLevel(glog.Info)
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = glog.WithLevel(glog.Trace)
	case "debug":
		level = glog.WithLevel(glog.Debug)
	case "warn":
		level = glog.WithLevel(glog.Warn)
	case "error":
		level = glog.WithLevel(glog.Error)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		level,
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}
