package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type FloodSettings struct {
	Limit    int
	Window   time.Duration
	Action   string
	Duration time.Duration
}

type WarnSettings struct {
	Limit int
	// Expiry of zero means warnings never expire.
	Expiry     time.Duration
	Punishment string
}

// ChatSettings holds per-chat overrides. Nil fields fall back to the global defaults.
type ChatSettings struct {
	ChatID         int64
	FloodEnabled   *bool
	Flood          *FloodSettings
	WarnLimit      *int
	WarnExpiry     *time.Duration
	WarnPunishment *string
	Rules          string
	Version        int64
}

func (c ChatSettings) ResolveFlood(defaults FloodSettings) FloodSettings {
	if c.Flood == nil {
		return defaults
	}
	return *c.Flood
}

func (c ChatSettings) FloodEnabledOr(fallback bool) bool {
	if c.FloodEnabled == nil {
		return fallback
	}
	return *c.FloodEnabled
}

func (c ChatSettings) ResolveWarn(defaults WarnSettings) WarnSettings {
	result := defaults
	if c.WarnLimit != nil {
		result.Limit = *c.WarnLimit
	}
	if c.WarnExpiry != nil {
		result.Expiry = *c.WarnExpiry
	}
	if c.WarnPunishment != nil {
		result.Punishment = *c.WarnPunishment
	}
	return result
}

func (s *Store) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error) {
	settings, _, err := s.getChatSettings(ctx, chatID)
	return settings, err
}

func (s *Store) getChatSettings(ctx context.Context, chatID int64) (ChatSettings, bool, error) {
	row := s.queryRow(ctx, `
		SELECT flood_enabled, flood_limit, flood_window_seconds, flood_action, flood_duration_seconds,
		warn_limit, warn_expiry_seconds, warn_punishment, rules, version
		FROM chat_settings WHERE chat_id = ?`, chatID)

	result := ChatSettings{ChatID: chatID}
	var (
		floodEnabled, floodLimit, floodWindow, floodDuration sql.NullInt64
		warnLimit, warnExpiry                                sql.NullInt64
		floodAction, warnPunishment                          sql.NullString
	)
	err := row.Scan(
		&floodEnabled,
		&floodLimit,
		&floodWindow,
		&floodAction,
		&floodDuration,
		&warnLimit,
		&warnExpiry,
		&warnPunishment,
		&result.Rules,
		&result.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, false, nil
		}
		return ChatSettings{}, false, err
	}

	if floodEnabled.Valid {
		enabled := floodEnabled.Int64 == 1
		result.FloodEnabled = &enabled
	}
	if floodLimit.Valid {
		result.Flood = &FloodSettings{
			Limit:    int(floodLimit.Int64),
			Window:   time.Duration(floodWindow.Int64) * time.Second,
			Action:   floodAction.String,
			Duration: time.Duration(floodDuration.Int64) * time.Second,
		}
	}
	if warnLimit.Valid {
		limit := int(warnLimit.Int64)
		result.WarnLimit = &limit
	}
	if warnExpiry.Valid {
		expiry := time.Duration(warnExpiry.Int64) * time.Second
		result.WarnExpiry = &expiry
	}
	if warnPunishment.Valid {
		punishment := warnPunishment.String
		result.WarnPunishment = &punishment
	}
	return result, true, nil
}

// UpdateChatSettings applies mutate to the current overrides and stores the result
// with a version check, retrying when another writer got there first.
func (s *Store) UpdateChatSettings(ctx context.Context, chatID int64, mutate func(*ChatSettings) error) (ChatSettings, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, exists, err := s.getChatSettings(ctx, chatID)
		if err != nil {
			return ChatSettings{}, err
		}
		next := current
		if err := mutate(&next); err != nil {
			return ChatSettings{}, err
		}
		next.ChatID = chatID

		var stored bool
		if exists {
			stored, err = s.updateChatSettings(ctx, next, current.Version)
		} else {
			stored, err = s.insertChatSettings(ctx, next)
		}
		if err != nil {
			return ChatSettings{}, err
		}
		if stored {
			next.Version = current.Version + 1
			return next, nil
		}
	}
	return ChatSettings{}, ErrConflict
}

func (s *Store) insertChatSettings(ctx context.Context, settings ChatSettings) (bool, error) {
	args := settingsColumns(settings)
	res, err := s.exec(ctx, `
		INSERT INTO chat_settings (
			chat_id, flood_enabled, flood_limit, flood_window_seconds, flood_action, flood_duration_seconds,
			warn_limit, warn_expiry_seconds, warn_punishment, rules, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(chat_id) DO NOTHING
	`, append([]any{settings.ChatID}, append(args, time.Now().Unix())...)...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

func (s *Store) updateChatSettings(ctx context.Context, settings ChatSettings, version int64) (bool, error) {
	args := settingsColumns(settings)
	args = append(args, time.Now().Unix(), settings.ChatID, version)
	res, err := s.exec(ctx, `
		UPDATE chat_settings SET
			flood_enabled = ?,
			flood_limit = ?,
			flood_window_seconds = ?,
			flood_action = ?,
			flood_duration_seconds = ?,
			warn_limit = ?,
			warn_expiry_seconds = ?,
			warn_punishment = ?,
			rules = ?,
			version = version + 1,
			updated_at = ?
		WHERE chat_id = ? AND version = ?
	`, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

func settingsColumns(settings ChatSettings) []any {
	var floodEnabled, floodLimit, floodWindow, floodAction, floodDuration any
	if settings.FloodEnabled != nil {
		floodEnabled = boolToInt(*settings.FloodEnabled)
	}
	if settings.Flood != nil {
		floodLimit = settings.Flood.Limit
		floodWindow = int64(settings.Flood.Window / time.Second)
		floodAction = settings.Flood.Action
		floodDuration = int64(settings.Flood.Duration / time.Second)
	}
	var warnLimit, warnExpiry, warnPunishment any
	if settings.WarnLimit != nil {
		warnLimit = *settings.WarnLimit
	}
	if settings.WarnExpiry != nil {
		warnExpiry = int64(*settings.WarnExpiry / time.Second)
	}
	if settings.WarnPunishment != nil {
		warnPunishment = *settings.WarnPunishment
	}
	return []any{
		floodEnabled, floodLimit, floodWindow, floodAction, floodDuration,
		warnLimit, warnExpiry, warnPunishment,
		settings.Rules,
	}
}
