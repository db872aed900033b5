// Package audit writes domain audit events to a dedicated zap logger.
package audit

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/projectsvc/domain"
)

// ZapAuditLogger implements domain.AuditLogger on top of zap
type ZapAuditLogger struct {
	logger *zap.Logger
}

// NewZapAuditLogger creates an audit logger writing through base
func NewZapAuditLogger(base *zap.Logger) *ZapAuditLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapAuditLogger{logger: base.Named("audit")}
}

// LogEvent implements domain.AuditLogger. Failed events are logged at warn level.
func (l *ZapAuditLogger) LogEvent(_ context.Context, event *domain.AuditEvent) error {
	if event == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("event_type", string(event.EventType)),
		zap.Uint("user_id", event.UserID),
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.IPAddress))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.ErrorMsg != "" {
		fields = append(fields, zap.String("error", event.ErrorMsg))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	if ce := l.logger.Check(level, "audit event"); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

var _ domain.AuditLogger = (*ZapAuditLogger)(nil)
