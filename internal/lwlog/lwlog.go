// Package lwlog configures the structured logger every other package in
// this module logs through: a single *logrus.Logger, fields-first, no bare
// log.Print calls.
package lwlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a JSON-formatted logger at the given level, writing to stderr.
// level accepts any logrus.ParseLevel string ("debug", "info", "warn", ...);
// an unparseable level falls back to info rather than failing startup.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	l.SetLevel(lv)
	return l
}

// WithPath returns a field logger scoped to a LwM2M path, the common
// grouping key nearly every client/engine log line in this module uses.
func WithPath(l *logrus.Logger, path string) *logrus.Entry {
	return l.WithField("path", path)
}

// WithServer returns a field logger scoped to a server short-server-id, used
// by the client state machine where several server connections may be
// logging concurrently.
func WithServer(l *logrus.Logger, ssid uint16) *logrus.Entry {
	return l.WithField("ssid", ssid)
}
