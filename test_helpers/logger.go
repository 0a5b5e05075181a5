package test_helpers

import (
	"sync"

	"github.com/ice-blockchain/go-dbproxy/logger"
)

// RecordingLogger keeps every reported event.
type RecordingLogger struct {
	mu     sync.Mutex
	events []logger.LogEvent
}

var _ logger.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) Report(event logger.LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

func (l *RecordingLogger) Events() []logger.LogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ret := make([]logger.LogEvent, len(l.events))
	copy(ret, l.events)
	return ret
}

// Named returns the events called name, in report order.
func (l *RecordingLogger) Named(name string) []logger.LogEvent {
	var ret []logger.LogEvent
	for _, e := range l.Events() {
		if e.EventName() == name {
			ret = append(ret, e)
		}
	}
	return ret
}
