package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to the file at path.
// When stdout is a terminal the output is mirrored there as well.
//
// If the file cannot be opened the logger falls back to stderr and says so;
// a missing log directory never stops the updater.
func New(path string, verbose bool) (*logrus.Entry, io.Closer) {
	return newLogger(path, verbose, os.Stdout, os.Stderr, term.IsTerminal(int(os.Stdout.Fd())))
}

func newLogger(path string, verbose bool, stdout, stderr io.Writer, isTerminal bool) (*logrus.Entry, io.Closer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var closer io.Closer = nopCloser{}
	var openErr error
	switch {
	case path == "" || path == "-":
		logger.SetOutput(stdout)
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			openErr = err
			logger.SetOutput(stderr)
			break
		}
		closer = f
		if isTerminal {
			logger.SetOutput(io.MultiWriter(f, stdout))
		} else {
			logger.SetOutput(f)
		}
	}

	entry := logrus.NewEntry(logger)
	if openErr != nil {
		entry.WithError(openErr).Warnf("unable to open log file %q, logging to stderr", path)
	}
	return entry, closer
}
