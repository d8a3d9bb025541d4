package refract

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/soypat/refract/asset"
	"github.com/soypat/refract/render"
)

// nopHandler is a slog.Handler that discards all records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger for refract and its sub-packages. By
// default nothing is logged. Passing nil restores the silent default.
//
// Log levels used:
//   - [slog.LevelDebug]: target allocation, shader and mesh loads
//   - [slog.LevelInfo]: resizes, imported meshes
//   - [slog.LevelWarn]: dropped frames, degraded capture targets, fallback materials
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	asset.SetLogger(l)
	render.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger { return loggerPtr.Load() }
