package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type KnownUser struct {
	UserID    int64
	Username  string
	FirstName string
}

// RememberUser records the latest username seen for a user so that commands can
// target "@name" without a platform lookup.
func (s *Store) RememberUser(ctx context.Context, user KnownUser) error {
	_, err := s.exec(ctx, `
		INSERT INTO known_users (user_id, username, first_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at
	`, user.UserID, strings.ToLower(strings.TrimPrefix(user.Username, "@")), user.FirstName, time.Now().Unix())
	return err
}

func (s *Store) LookupUsername(ctx context.Context, username string) (KnownUser, bool, error) {
	name := strings.ToLower(strings.TrimPrefix(username, "@"))
	if name == "" {
		return KnownUser{}, false, nil
	}
	row := s.queryRow(ctx, `
		SELECT user_id, username, first_name FROM known_users
		WHERE username = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, name)
	var user KnownUser
	if err := row.Scan(&user.UserID, &user.Username, &user.FirstName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KnownUser{}, false, nil
		}
		return KnownUser{}, false, err
	}
	return user, true, nil
}

func (s *Store) GetKnownUser(ctx context.Context, userID int64) (KnownUser, bool, error) {
	row := s.queryRow(ctx, `SELECT user_id, username, first_name FROM known_users WHERE user_id = ?`, userID)
	var user KnownUser
	if err := row.Scan(&user.UserID, &user.Username, &user.FirstName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KnownUser{}, false, nil
		}
		return KnownUser{}, false, err
	}
	return user, true, nil
}
