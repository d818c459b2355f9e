package emote

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false, so callers skip
// formatting and disabled logging costs nothing.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for emote and the devices of every open
// engine. By default emote logs nothing. Pass nil to silence it again.
//
// Log levels:
//   - [slog.LevelDebug]: per-job and per-frame diagnostics
//   - [slog.LevelInfo]: lifecycle (engine opened, job finished)
//   - [slog.LevelWarn]: context loss, fallback image, release failures
//
// Example:
//
//	emote.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	enginesMu.Lock()
	defer enginesMu.Unlock()
	for e := range engines {
		propagateLogger(e.Device(), l)
	}
}

// Logger returns the logger used by emote. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that log on their own, such as
// the wgpu HAL device.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(dev any, l *slog.Logger) {
	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// Open engines, for logger propagation.
var (
	enginesMu sync.Mutex
	engines   = map[*Engine]struct{}{}
)

func trackEngine(e *Engine) {
	enginesMu.Lock()
	engines[e] = struct{}{}
	enginesMu.Unlock()
	propagateLogger(e.Device(), Logger())
}

func untrackEngine(e *Engine) {
	enginesMu.Lock()
	delete(engines, e)
	enginesMu.Unlock()
}
