package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type Warning struct {
	Reason    string     `json:"reason"`
	IssuedBy  int64      `json:"issued_by"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (w Warning) Expired(now time.Time) bool {
	return w.ExpiresAt != nil && !now.Before(*w.ExpiresAt)
}

// WarningsMutation returns the new list and whether it differs from the one given.
type WarningsMutation func(current []Warning) ([]Warning, bool, error)

func (s *Store) GetWarnings(ctx context.Context, chatID, userID int64) ([]Warning, error) {
	warnings, _, err := s.getWarnings(ctx, chatID, userID)
	return warnings, err
}

func (s *Store) getWarnings(ctx context.Context, chatID, userID int64) ([]Warning, int64, error) {
	row := s.queryRow(ctx, `
		SELECT warnings, version FROM user_warnings
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)

	var raw string
	var version int64
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	var warnings []Warning
	if err := json.Unmarshal([]byte(raw), &warnings); err != nil {
		return nil, 0, err
	}
	return warnings, version, nil
}

// UpdateWarnings runs mutate against the stored list for (chatID, userID) as a
// single compare-and-set on the row version.
func (s *Store) UpdateWarnings(ctx context.Context, chatID, userID int64, mutate WarningsMutation) ([]Warning, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, version, err := s.getWarnings(ctx, chatID, userID)
		if err != nil {
			return nil, err
		}
		next, changed, err := mutate(current)
		if err != nil {
			return nil, err
		}
		if !changed {
			return next, nil
		}
		if next == nil {
			next = []Warning{}
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}

		var res sql.Result
		now := time.Now().Unix()
		if version == 0 {
			res, err = s.exec(ctx, `
				INSERT INTO user_warnings (chat_id, user_id, warnings, version, updated_at)
				VALUES (?, ?, ?, 1, ?)
				ON CONFLICT(chat_id, user_id) DO NOTHING
			`, chatID, userID, string(payload), now)
		} else {
			res, err = s.exec(ctx, `
				UPDATE user_warnings SET warnings = ?, version = version + 1, updated_at = ?
				WHERE chat_id = ? AND user_id = ? AND version = ?
			`, string(payload), now, chatID, userID, version)
		}
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			return next, nil
		}
	}
	return nil, ErrConflict
}

// PruneExpired drops expired warnings and reports whether anything was removed.
func PruneExpired(warnings []Warning, now time.Time) ([]Warning, bool) {
	active := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		if w.Expired(now) {
			continue
		}
		active = append(active, w)
	}
	return active, len(active) != len(warnings)
}
