// ABOUTME: Adapts a zap logger to Badger's logging interface
// ABOUTME: Badger info chatter is demoted to debug
package kv

import (
	"strings"

	"go.uber.org/zap"
)

type badgerLogger struct {
	s *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &badgerLogger{s: logger.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.s.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.s.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(strings.TrimSpace(format), args...)
}
