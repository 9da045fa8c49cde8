// Package notifytest provides a recording notify.Sink for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/condohub/condohub/internal/notify"
)

// Recorder captures every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	// Err, when set, is returned from every call after recording.
	Err error
}

// CreateNotification implements notify.Sink.
func (r *Recorder) CreateNotification(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.Err
}

// Sent returns a copy of recorded notifications.
func (r *Recorder) Sent() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfType returns recorded notifications of the given type.
func (r *Recorder) OfType(t notify.Type) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.Sent() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
