// Package log provides simple, leveled logging for ndbfs. It mirrors
// the shape of Go's standard log package but adds a Level so the AFS
// block and its workers can be quieted or made verbose independently
// of other code sharing the process, and so an embedding application
// can redirect output by installing its own Outputter.
package log

import (
	"fmt"
	golog "log"
	"os"
)

// Level is a log verbosity level. Lower values are higher priority;
// an Outputter logging at level L emits all messages at level M <= L.
type Level int

const (
	// Off disables all output.
	Off Level = -2
	// Error is for conditions that abort the current request or, when
	// paired with errors.Fatal, the node.
	Error Level = -1
	// Info is for pool growth, idle recycling, and dump output.
	Info Level = 0
	// Debug is for per-request tracing: open/close/retry events.
	Debug Level = 1
)

// An Outputter receives leveled log lines. The default outputter
// writes to the standard log package; embedders that already have a
// structured logger can install their own via SetOutputter.
type Outputter interface {
	Level() Level
	Output(level Level, s string) error
}

var out Outputter = &gologOutputter{level: Info, l: golog.New(os.Stderr, "", golog.LstdFlags)}

// SetOutputter installs a new outputter and returns the previous one.
// Must not be called concurrently with logging calls.
func SetOutputter(o Outputter) Outputter {
	old := out
	out = o
	return old
}

// At reports whether the current outputter logs at the given level.
func At(level Level) bool { return level <= out.Level() }

// ErrorLog, InfoLog and DebugLog are package-level loggers with a
// *log.Logger-compatible Printf, so call sites read like
// log.ErrorLog.Printf("...").
var (
	ErrorLog = &printfer{Error}
	InfoLog  = &printfer{Info}
	DebugLog = &printfer{Debug}
)

type printfer struct{ level Level }

func (p *printfer) Printf(format string, args ...interface{}) {
	if !At(p.level) {
		return
	}
	_ = out.Output(p.level, fmt.Sprintf(format, args...))
}

func (p *printfer) Print(args ...interface{}) {
	if !At(p.level) {
		return
	}
	_ = out.Output(p.level, fmt.Sprint(args...))
}

// gologOutputter is the default Outputter, writing through a
// *log.Logger.
type gologOutputter struct {
	level Level
	l     *golog.Logger
}

func (g *gologOutputter) Level() Level { return g.level }

func (g *gologOutputter) Output(level Level, s string) error {
	if level > g.level {
		return nil
	}
	prefix := "INFO"
	switch level {
	case Error:
		prefix = "ERROR"
	case Debug:
		prefix = "DEBUG"
	}
	return g.l.Output(3, prefix+": "+s)
}

// SetLevel adjusts the default outputter's level; a no-op if a custom
// outputter has been installed.
func SetLevel(level Level) {
	if g, ok := out.(*gologOutputter); ok {
		g.level = level
	}
}
