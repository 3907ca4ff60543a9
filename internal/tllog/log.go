// Package tllog wires the engine's diagnostics to log/slog, the way
// stream-capture and the orion-pipeline example configure it
// (slog.New(slog.NewTextHandler(...)) plus slog.SetDefault), and also
// exposes every logged item through an observable.Value[LogItem], the
// Go equivalent of the original player's observer::Value<LogItem> log
// system — this is the logging hook spec's design notes call for.
package tllog

import (
	"log/slog"
	"os"

	"github.com/visiona/tlplay/internal/observable"
	"github.com/visiona/tlplay/internal/tlerrors"
)

// Level mirrors the original LogSystem's three-level taxonomy.
type Level int

const (
	LevelMessage Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	default:
		return "Message"
	}
}

// Item is one structured log record, matching the original LogSystem's
// LogItem{prefix, type, message} shape.
type Item struct {
	Prefix  string
	Level   Level
	Message string
}

// String renders an Item the way the original's toString(LogItem) does:
// "prefix: [Warning: |ERROR: ]message".
func (it Item) String() string {
	switch it.Level {
	case LevelWarning:
		return it.Prefix + ": Warning: " + it.Message
	case LevelError:
		return it.Prefix + ": ERROR: " + it.Message
	default:
		return it.Prefix + ": " + it.Message
	}
}

// Hub fans every log call out to both a *slog.Logger and an
// observable.Value[Item] that the last item can be read from or
// subscribed to, e.g. by a UI status bar.
type Hub struct {
	logger *slog.Logger
	last   *observable.Value[Item]
}

// NewHub builds a Hub around logger. If logger is nil, a default text
// handler writing to os.Stderr is used, matching the teacher's fallback
// when no explicit logger is wired in.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Hub{
		logger: logger,
		last:   observable.NewValue(Item{}, func(a, b Item) bool { return a == b }),
	}
}

// Last returns the observable most-recently-logged Item.
func (h *Hub) Last() *observable.Value[Item] { return h.last }

// Message logs at info level, matching the original LogType::Message.
func (h *Hub) Message(prefix, message string) {
	h.emit(Item{Prefix: prefix, Level: LevelMessage, Message: message})
	h.logger.Info(message, "prefix", prefix)
}

// Warning logs at warn level.
func (h *Hub) Warning(prefix, message string) {
	h.emit(Item{Prefix: prefix, Level: LevelWarning, Message: message})
	h.logger.Warn(message, "prefix", prefix)
}

// Error logs at error level, unless err represents cancellation — per
// spec's propagation policy, Cancelled is never reported as an error.
func (h *Hub) Error(prefix string, err error) {
	if err == nil {
		return
	}
	if tlerrors.IsCancelled(err) {
		h.emit(Item{Prefix: prefix, Level: LevelMessage, Message: "cancelled: " + err.Error()})
		h.logger.Debug("cancelled", "prefix", prefix, "error", err)
		return
	}
	h.emit(Item{Prefix: prefix, Level: LevelError, Message: err.Error()})
	h.logger.Error(err.Error(), "prefix", prefix)
}

func (h *Hub) emit(it Item) {
	h.last.Set(it)
}
