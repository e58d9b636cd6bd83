// Package notify defines the notification capability the ledger uses to
// tell students about settled payments. Delivery belongs to the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/rentledger/id"
)

// Message is a single notification.
type Message struct {
	Recipient id.StudentID `json:"recipient"`
	Subject   string       `json:"subject"`
	Body      string       `json:"body"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Log writes notifications to a logger instead of delivering them.
type Log struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"recipient", msg.Recipient.String(),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// Recorder keeps every message it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

// Notify implements Notifier. It records msg even when failing.
func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

// FailWith makes subsequent Notify calls return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// For returns the messages addressed to recipient.
func (r *Recorder) For(recipient id.StudentID) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}
