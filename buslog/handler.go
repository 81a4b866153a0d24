package buslog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sat8bit/taiwa/bus"
	"github.com/sat8bit/taiwa/message"
)

// BusHandler is a slog.Handler that writes log records to a bus.Bus.
// It also wraps another slog.Handler to continue writing to the original destination.
// Only records at or above the bus level are broadcast; the wrapped handler
// decides for itself what it writes.
type BusHandler struct {
	bus   bus.Bus
	next  slog.Handler
	level slog.Leveler
	attrs []slog.Attr
}

// NewBusHandler creates a new BusHandler.
func NewBusHandler(b bus.Bus, next slog.Handler, level slog.Leveler) *BusHandler {
	if level == nil {
		level = slog.LevelWarn
	}
	return &BusHandler{
		bus:   b,
		next:  next,
		level: level,
	}
}

// Enabled reports whether either the bus or the wrapped handler wants the level.
func (h *BusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

// Handle handles the Record.
// It passes the record to the wrapped handler and then broadcasts it to the bus.
// A closed bus is not an error; the record has already been written.
func (h *BusHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < h.level.Level() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", r.Level, r.Message))
	for _, a := range h.attrs {
		sb.WriteString(fmt.Sprintf(" %s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(fmt.Sprintf(" %s=%v", a.Key, a.Value))
		return true
	})

	if err := h.bus.Broadcast(&message.Message{
		Text: sb.String(),
		At:   time.Now(),
		Kind: message.KindLog,
	}); err != nil && err != bus.ErrClosed {
		return err
	}
	return nil
}

// WithAttrs returns a new BusHandler whose attributes consist of
// the handler's attributes followed by attrs.
func (h *BusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

// WithGroup returns a new BusHandler with the given group name.
// Groups are only applied to the wrapped handler.
func (h *BusHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}

var _ slog.Handler = (*BusHandler)(nil)
