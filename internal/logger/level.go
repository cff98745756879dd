package logger

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// levelFilter drops events below a level that can change at runtime. Every
// logger derived from Logger writes through the same filter, so one SetLevel
// reaches the loggers modules captured at construction.
type levelFilter struct {
	next  io.Writer
	level atomic.Int32
}

func newLevelFilter(next io.Writer, level zerolog.Level) *levelFilter {
	f := &levelFilter{next: next}
	f.set(level)
	return f
}

func (f *levelFilter) set(level zerolog.Level) {
	f.level.Store(int32(level))
}

func (f *levelFilter) get() zerolog.Level {
	return zerolog.Level(f.level.Load())
}

func (f *levelFilter) Write(p []byte) (int, error) {
	return f.next.Write(p)
}

// WriteLevel implements zerolog.LevelWriter
func (f *levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.get() {
		return len(p), nil
	}
	return f.next.Write(p)
}
