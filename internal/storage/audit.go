package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID       int64
	ChatID   int64
	ActorID  int64
	Action   string
	TargetID *int64
	Details  map[string]any
	// CreatedAt is stored with second precision.
	CreatedAt time.Time
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	details := log.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	var target any
	if log.TargetID != nil {
		target = *log.TargetID
	}
	_, err = s.exec(ctx, `
		INSERT INTO audit_logs (chat_id, actor_id, action, target_user_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.ChatID, log.ActorID, log.Action, target, string(payload), log.CreatedAt.Unix())
	return err
}

// ListAuditLogs returns at most limit entries, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, chatID int64, limit int) ([]AuditLog, error) {
	rows, err := s.query(ctx, `
		SELECT id, chat_id, actor_id, action, target_user_id, details, created_at
		FROM audit_logs
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	return scanAuditLogs(rows)
}

func (s *Store) ListAuditLogsSince(ctx context.Context, chatID int64, since time.Time) ([]AuditLog, error) {
	rows, err := s.query(ctx, `
		SELECT id, chat_id, actor_id, action, target_user_id, details, created_at
		FROM audit_logs
		WHERE chat_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`, chatID, since.Unix())
	if err != nil {
		return nil, err
	}
	return scanAuditLogs(rows)
}

func scanAuditLogs(rows *sql.Rows) ([]AuditLog, error) {
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var target sql.NullInt64
		var details string
		var created int64
		if err := rows.Scan(&log.ID, &log.ChatID, &log.ActorID, &log.Action, &target, &details, &created); err != nil {
			return nil, err
		}
		if target.Valid {
			value := target.Int64
			log.TargetID = &value
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &log.Details); err != nil {
				return nil, err
			}
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
