package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type BanRecord struct {
	ChatID    int64
	UserID    int64
	BannedBy  int64
	Reason    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Permanent mirrors the stored flag; a record is permanent exactly when it has no expiry.
func (b BanRecord) Permanent() bool {
	return b.ExpiresAt == nil
}

func (b BanRecord) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

func (s *Store) PutBan(ctx context.Context, record BanRecord) error {
	var expiresAt any
	if record.ExpiresAt != nil {
		expiresAt = record.ExpiresAt.Unix()
	}
	created := record.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO bans (chat_id, user_id, banned_by, reason, expires_at, permanent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			banned_by = excluded.banned_by,
			reason = excluded.reason,
			expires_at = excluded.expires_at,
			permanent = excluded.permanent,
			created_at = excluded.created_at
	`, record.ChatID, record.UserID, record.BannedBy, record.Reason, expiresAt, boolToInt(record.Permanent()), created.Unix())
	return err
}

func (s *Store) GetBan(ctx context.Context, chatID, userID int64) (BanRecord, bool, error) {
	row := s.queryRow(ctx, `
		SELECT chat_id, user_id, banned_by, reason, expires_at, created_at
		FROM bans WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	record, err := scanBan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BanRecord{}, false, nil
		}
		return BanRecord{}, false, err
	}
	return record, true, nil
}

// DeleteBan reports whether a record existed.
func (s *Store) DeleteBan(ctx context.Context, chatID, userID int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM bans WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *Store) ListBans(ctx context.Context, chatID int64) ([]BanRecord, error) {
	rows, err := s.query(ctx, `
		SELECT chat_id, user_id, banned_by, reason, expires_at, created_at
		FROM bans WHERE chat_id = ?
		ORDER BY created_at DESC, user_id
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BanRecord
	for rows.Next() {
		record, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBan(row rowScanner) (BanRecord, error) {
	var record BanRecord
	var expires sql.NullInt64
	var created int64
	if err := row.Scan(&record.ChatID, &record.UserID, &record.BannedBy, &record.Reason, &expires, &created); err != nil {
		return BanRecord{}, err
	}
	if expires.Valid {
		value := time.Unix(expires.Int64, 0)
		record.ExpiresAt = &value
	}
	record.CreatedAt = time.Unix(created, 0)
	return record, nil
}
