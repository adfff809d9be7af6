package logging

import (
	"sync"

	"github.com/rs/zerolog"
)

// ErrorRecorder is a zerolog hook that keeps every message logged at error
// level or above. Jobs attach one to their logger and use it to decide the
// scheduled job result at the end of a run.
type ErrorRecorder struct {
	mu       sync.Mutex
	messages []string
}

// NewErrorRecorder returns an empty recorder.
func NewErrorRecorder() *ErrorRecorder {
	return &ErrorRecorder{}
}

// Run implements zerolog.Hook.
func (r *ErrorRecorder) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel || level > zerolog.PanicLevel {
		return
	}
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages in log order.
func (r *ErrorRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len is the number of recorded messages.
func (r *ErrorRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Attach returns a copy of logger that feeds r.
func (r *ErrorRecorder) Attach(logger zerolog.Logger) zerolog.Logger {
	return logger.Hook(r)
}
