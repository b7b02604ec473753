// Package audit records security-relevant events. Recording is informational
// and never blocks or fails the request that produced the event.
package audit

import (
	"context"

	"github.com/akorchagin/authd/internal/ids"
	"github.com/akorchagin/authd/internal/logging"
)

// Event kinds.
const (
	KindLoginSuccess   = "auth.login.success"
	KindLoginFailure   = "auth.login.failure"
	KindLogout         = "auth.logout"
	KindRefreshRotated = "auth.refresh.rotated"
	KindTokenReuse     = "auth.refresh.reuse_detected"
	KindResetRequested = "auth.password.reset_requested"
	KindPasswordChange = "auth.password.changed"
)

// Recorder is the audit sink consumed by the services. The variadic args
// are key-value pairs, same convention as logging.Logger.
type Recorder interface {
	Record(ctx context.Context, kind string, args ...any)
}

// LogRecorder writes audit events through the structured logger, tagging
// each with a sortable event id.
type LogRecorder struct {
	log logging.Logger
}

// NewLogRecorder constructs a Recorder backed by the given logger.
func NewLogRecorder(log logging.Logger) *LogRecorder {
	return &LogRecorder{log: log.With("channel", "audit")}
}

func (r *LogRecorder) Record(ctx context.Context, kind string, args ...any) {
	kv := make([]any, 0, len(args)+4)
	kv = append(kv, "event_id", ids.New(), "kind", kind)
	kv = append(kv, args...)
	r.log.Info(ctx, "audit event", kv...)
}

// Nop is a Recorder that discards everything. Useful in tests.
type Nop struct{}

func (Nop) Record(ctx context.Context, kind string, args ...any) {}
