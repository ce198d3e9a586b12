package storage

import (
	"context"
	"time"
)

// AddBlacklistWords inserts the given words and returns the ones that were new.
// Words are stored as given; callers normalise case.
func (s *Store) AddBlacklistWords(ctx context.Context, chatID int64, words []string) ([]string, error) {
	var added []string
	now := time.Now().Unix()
	for _, word := range words {
		res, err := s.exec(ctx, `
			INSERT INTO chat_blacklist (chat_id, word, created_at) VALUES (?, ?, ?)
			ON CONFLICT(chat_id, word) DO NOTHING
		`, chatID, word, now)
		if err != nil {
			return added, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added = append(added, word)
		}
	}
	return added, nil
}

func (s *Store) RemoveBlacklistWords(ctx context.Context, chatID int64, words []string) ([]string, error) {
	var removed []string
	for _, word := range words {
		res, err := s.exec(ctx, `DELETE FROM chat_blacklist WHERE chat_id = ? AND word = ?`, chatID, word)
		if err != nil {
			return removed, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			removed = append(removed, word)
		}
	}
	return removed, nil
}

func (s *Store) ListBlacklist(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.query(ctx, `SELECT word FROM chat_blacklist WHERE chat_id = ? ORDER BY word`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}
