package migration

import (
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// ProgressSink receives progress events from a long-running migration
// step. Per spec.md §9: "mutable print-based progress reporting...
// becomes a ProgressSink interface with start(total), advance(n, msg),
// finish()" — steps that touch an unbounded number of rows report
// through this instead of printing directly.
type ProgressSink interface {
	Start(total int)
	Advance(n int, msg string)
	Finish()
}

// logProgressSink is the default ProgressSink: it formats counts with
// dustin/go-humanize (thousands separators on row counts, the teacher's
// pack-wide convention for human-facing numbers) and reports through a
// step's zap logger rather than stdout.
type logProgressSink struct {
	log   *zap.SugaredLogger
	label string
	total int
}

func (s *logProgressSink) Start(total int) {
	s.total = total
	if s.log == nil || total == 0 {
		return
	}
	s.log.Infow(s.label+": starting", "total", humanize.Comma(int64(total)))
}

func (s *logProgressSink) Advance(n int, msg string) {
	if s.log == nil {
		return
	}
	fields := []interface{}{"done", humanize.Comma(int64(n))}
	if s.total > 0 {
		fields = append(fields, "total", humanize.Comma(int64(s.total)), "percent", n*100/s.total)
	}
	if msg != "" {
		fields = append(fields, "detail", msg)
	}
	s.log.Infow(s.label, fields...)
}

func (s *logProgressSink) Finish() {
	if s.log != nil {
		s.log.Infow(s.label + ": done")
	}
}

// progress returns a ProgressSink bound to env's logger, labeled for the
// calling step.
func (env *Env) progress(label string) ProgressSink {
	return &logProgressSink{log: env.Log, label: label}
}
