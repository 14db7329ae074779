package std

import (
	"fmt"
	"io"
	"os"

	"github.com/ezraisw/reslock/logger"
)

type stdLogger struct {
	out   io.Writer
	err   io.Writer
	debug bool
}

func NewLogger() logger.Logger {
	return &stdLogger{
		out:   os.Stdout,
		err:   os.Stderr,
		debug: true,
	}
}

// NewQuietLogger returns a logger that drops debug messages.
func NewQuietLogger() logger.Logger {
	return &stdLogger{
		out: os.Stdout,
		err: os.Stderr,
	}
}

func (l stdLogger) Info(args ...any) {
	fmt.Fprintln(l.out, args...)
}

func (l stdLogger) Debug(args ...any) {
	if !l.debug {
		return
	}
	fmt.Fprintln(l.out, args...)
}

func (l stdLogger) Warn(args ...any) {
	fmt.Fprintln(l.err, args...)
}

func (l stdLogger) Error(args ...any) {
	fmt.Fprintln(l.err, args...)
}
