// Package logr adapts a go-logr Logger to logger.Logger.
package logr

import (
	"errors"
	"fmt"

	"github.com/ezraisw/reslock/logger"
	"github.com/go-logr/logr"
)

const debugLevel = 1

type logrLogger struct {
	l logr.Logger
}

func NewLogger(l logr.Logger) logger.Logger {
	return &logrLogger{l: l}
}

func (l logrLogger) Info(args ...any) {
	msg, kv := split(args)
	l.l.Info(msg, kv...)
}

func (l logrLogger) Debug(args ...any) {
	msg, kv := split(args)
	l.l.V(debugLevel).Info(msg, kv...)
}

func (l logrLogger) Warn(args ...any) {
	msg, kv := split(args)
	l.l.Info(msg, append(kv, "severity", "warn")...)
}

func (l logrLogger) Error(args ...any) {
	var err error
	rest := make([]any, 0, len(args))
	for _, a := range args {
		if e, ok := a.(error); ok && err == nil {
			err = e
			continue
		}
		rest = append(rest, a)
	}

	msg, kv := split(rest)
	if err == nil {
		err = errors.New(msg)
	}
	l.l.Error(err, msg, kv...)
}

// split uses the first argument as message and the remaining ones as values.
func split(args []any) (string, []any) {
	if len(args) == 0 {
		return "", nil
	}

	msg := fmt.Sprint(args[0])
	if len(args) == 1 {
		return msg, nil
	}

	kv := make([]any, 0, (len(args)-1)*2)
	for i, a := range args[1:] {
		kv = append(kv, fmt.Sprintf("arg%d", i), a)
	}
	return msg, kv
}
