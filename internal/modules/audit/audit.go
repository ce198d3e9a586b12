package audit

import (
	"context"
	"time"

	"groupguard/internal/metrics"
	"groupguard/internal/storage"

	"go.uber.org/zap"
)

const (
	ActionBan                = "ban"
	ActionUnban              = "unban"
	ActionKick               = "kick"
	ActionRestrict           = "restrict"
	ActionWarn               = "warn"
	ActionUnwarn             = "unwarn"
	ActionResetWarns         = "resetwarns"
	ActionSettingsChange     = "settings_change"
	ActionBlacklistTriggered = "blacklist_triggered"
	ActionBlacklistUpdate    = "blacklist_update"
	ActionFlood              = "flood"
	ActionRulesSet           = "rules_set"
)

const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 50
)

type Store interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
	ListAuditLogs(ctx context.Context, chatID int64, limit int) ([]storage.AuditLog, error)
}

type Logger struct {
	store  Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

// Log records an action. It never fails: storage errors are only logged.
// A targetID of zero means the action has no target user.
func (l *Logger) Log(ctx context.Context, chatID, actorID int64, action string, targetID int64, details map[string]any) {
	entry := storage.AuditLog{
		ChatID:    chatID,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: l.now(),
	}
	if targetID != 0 {
		entry.TargetID = &targetID
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			metrics.AuditFailures.Inc()
			l.logger.Warn("audit write failed", zap.Int64("chat_id", chatID), zap.String("action", action), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.Int64("chat_id", chatID), zap.Int64("actor_id", actorID), zap.String("action", action), zap.Int64("target_id", targetID), zap.Any("details", details))
}

// Query returns the newest entries for a chat. limit is clamped to 1..50, zero means 10.
func (l *Logger) Query(ctx context.Context, chatID int64, limit int) ([]storage.AuditLog, error) {
	return l.store.ListAuditLogs(ctx, chatID, ClampLimit(limit))
}

func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultQueryLimit
	case limit < 1:
		return 1
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}
