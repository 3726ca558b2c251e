// Package notify forwards selected lifecycle events to chat channels
// (Telegram, Discord). Delivery runs on its own goroutine so a slow webhook
// never stalls the betting loop.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/questbot/internal/domain"
)

const queueSize = 64

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

type message struct {
	event, title, body string
}

// Notifier dispatches to every Sender. Only events in the allowed set are
// forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	queue   chan message
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan message, queueSize),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Allowed reports whether event passes the filter.
func (n *Notifier) Allowed(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// OnEvent formats ev and queues it for delivery. It never blocks; when the
// queue is full the notification is dropped.
func (n *Notifier) OnEvent(ctx context.Context, ev domain.Event) {
	if len(n.senders) == 0 || !n.Allowed(string(ev.Type)) {
		return
	}
	title, body, ok := Format(ev)
	if !ok {
		return
	}
	select {
	case n.queue <- message{event: string(ev.Type), title: title, body: body}:
	default:
		n.logger.WarnContext(ctx, "notification queue full, dropping", slog.String("event", string(ev.Type)))
	}
}

// Run delivers queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-n.queue:
			if err := n.Notify(ctx, m.event, m.title, m.body); err != nil {
				n.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Notify sends synchronously if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, body string) error {
	if !n.Allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, body)
}

// NotifyAll sends regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, body string) error {
	return n.dispatch(ctx, title, body)
}

// dispatch tries every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, body); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
