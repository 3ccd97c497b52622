// Package logging constructs the single process-wide logrus logger
// every component threads through, per spec §4.J: text formatting on a
// TTY, JSON otherwise, with the level set from configuration.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// isTTY reports whether fd refers to a terminal, checked the cheap way
// (TCGETS succeeds only on a tty) rather than pulling in a dedicated
// terminal-detection dependency for one syscall.
func isTTY(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

// New builds the process-wide logger at the given level name ("debug",
// "info", "warn", "error" — anything else falls back to "info").
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if isTTY(int(os.Stdout.Fd())) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// ForWorker returns a logger entry pre-tagged with worker_id, the field
// every session/reactor log line carries per spec §4.J.
func ForWorker(log *logrus.Logger, workerID int) *logrus.Entry {
	return log.WithField("worker_id", workerID)
}

// WithConn augments an entry with fd and remote_addr, added once a
// connection is accepted.
func WithConn(entry *logrus.Entry, fd int32, remoteAddr string) *logrus.Entry {
	return entry.WithField("fd", fd).WithField("remote_addr", remoteAddr)
}
