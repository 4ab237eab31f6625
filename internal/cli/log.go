// Package cli implements the pylock command-line interface.
//
// The commands manage a project's Pipfile and produce its Pipfile.lock
// with the resolver in pkg/lock. The CLI is built using cobra and logs
// through charmbracelet/log; human-facing output is styled with lipgloss.
//
// # Commands
//
// The main commands are:
//   - init, add, remove, import: edit the Pipfile
//   - lock, upgrade: resolve and write Pipfile.lock
//   - check, why, graph: inspect the lock
//   - cache: manage the HTTP, hash and dependency caches
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/lock"
)

// newLogger returns the CLI logger writing to w. Timestamps carry
// hundredths of a second ("14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one command step.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// done logs msg at info level with the elapsed time appended as "took".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "took", p.elapsed())...)
}

// stages logs the per-stage durations of a lock at debug level.
func (p *progress) stages(s lock.Stats) {
	p.logger.Debug("lock stages",
		"resolve", s.ResolveTime.Round(time.Millisecond),
		"trace", s.TraceTime.Round(time.Millisecond),
		"hash", s.HashTime.Round(time.Millisecond),
		"propagate", s.PropagateTime.Round(time.Millisecond))
}

type loggerKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default when there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
