// Package log provides leveled logging for the telemetry translator.
//
// Time/date are omitted by default because the process is normally run
// under systemd, which timestamps journal entries itself; pass
// -logdate to re-enable it. Levels use the systemd message-priority
// prefixes (https://www.freedesktop.org/software/systemd/man/sd-daemon.html)
// so journald can filter by severity without parsing text.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

const (
	DebugPrefix = "<7>[DEBUG]    "
	InfoPrefix  = "<6>[INFO]     "
	WarnPrefix  = "<4>[WARNING]  "
	ErrPrefix   = "<3>[ERROR]    "
	CritPrefix  = "<2>[CRITICAL] "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	critLog  = log.New(CritWriter, CritPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	critTimeLog  = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards writers below the named level: "debug" (default),
// "info", "warn", "err" or "crit".
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug", "":
		// nothing to discard
	default:
		fmt.Printf("log: unknown level %q, defaulting to debug\n", lvl)
	}
}

// SetLogDateTime toggles a leading timestamp on every line.
func SetLogDateTime(v bool) {
	logDateTime = v
}

func Debugf(format string, v ...any) {
	if DebugWriter == io.Discard {
		return
	}
	if logDateTime {
		debugTimeLog.Output(2, fmt.Sprintf(format, v...))
	} else {
		debugLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Infof(format string, v ...any) {
	if InfoWriter == io.Discard {
		return
	}
	if logDateTime {
		infoTimeLog.Output(2, fmt.Sprintf(format, v...))
	} else {
		infoLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warnf(format string, v ...any) {
	if WarnWriter == io.Discard {
		return
	}
	if logDateTime {
		warnTimeLog.Output(2, fmt.Sprintf(format, v...))
	} else {
		warnLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Errorf(format string, v ...any) {
	if ErrWriter == io.Discard {
		return
	}
	if logDateTime {
		errTimeLog.Output(2, fmt.Sprintf(format, v...))
	} else {
		errLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Critf(format string, v ...any) {
	if CritWriter == io.Discard {
		return
	}
	if logDateTime {
		critTimeLog.Output(2, fmt.Sprintf(format, v...))
	} else {
		critLog.Output(2, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs at critical level and terminates the process. Reserved
// for conditions §7 calls unrecoverable (e.g. all sinks exhausted at
// startup).
func Fatalf(format string, v ...any) {
	Critf(format, v...)
	os.Exit(1)
}
