package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle holds process state shared across handlers. A relay is ready
// once it has been started and is not draining.
type Lifecycle struct {
	startedAt atomic.Int64
	draining  atomic.Bool
}

// MarkStarted records the moment the listener began serving.
func (l *Lifecycle) MarkStarted(at time.Time) {
	if l == nil {
		return
	}
	l.startedAt.Store(at.UnixNano())
}

// Uptime is zero until MarkStarted is called.
func (l *Lifecycle) Uptime(now time.Time) time.Duration {
	if l == nil {
		return 0
	}
	ns := l.startedAt.Load()
	if ns == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, ns))
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
