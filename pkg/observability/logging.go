package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger for pagestream components.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger(component string, level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, "json", component, level)
}

// NewLoggerTo creates a logger writing to w in the given format ("json" or "text").
func NewLoggerTo(w io.Writer, format, component string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "pagestream"),
	)
	return &Logger{Logger: logger}
}

// Discard returns a logger that drops everything. Used by tests and nil-safe defaults.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger tagged with a sub-component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", component))}
}

// WithSession returns a logger with session-specific fields
func (l *Logger) WithSession(userID, sessionID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
		),
	}
}

// WithUser returns a logger with the owning user id.
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("user_id", userID))}
}

// SessionCreated logs creation of a new session.
func (l *Logger) SessionCreated(engineID, target string, navigated bool) {
	l.Info("session created",
		slog.String("engine_id", engineID),
		slog.String("target", target),
		slog.Bool("navigated", navigated),
	)
}

// SessionRemoved logs a session removal.
func (l *Logger) SessionRemoved(reason string) {
	l.Info("session removed", slog.String("reason", reason))
}

// CaptureFailed logs a failed capture that did not end the session.
func (l *Logger) CaptureFailed(kind string, err error) {
	l.Warn("capture failed",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// CommandIgnored logs a client command that was dropped.
func (l *Logger) CommandIgnored(commandType, reason string) {
	l.Debug("command ignored",
		slog.String("command_type", commandType),
		slog.String("reason", reason),
	)
}

// EngineReaped logs an engine closed by the sweeper.
func (l *Logger) EngineReaped(userID, engineID string, err error) {
	if err != nil {
		l.Error("engine close failed",
			slog.String("user_id", userID),
			slog.String("engine_id", engineID),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("engine reaped",
		slog.String("user_id", userID),
		slog.String("engine_id", engineID),
	)
}
