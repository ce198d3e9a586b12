package antiflood

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupguard/internal/metrics"
	"groupguard/internal/modules/audit"
	"groupguard/internal/modules/punish"
	"groupguard/internal/platform"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

const (
	MinLimit    = 3
	MinWindow   = 3 * time.Second
	MinDuration = 30 * time.Second
)

type SettingsStore interface {
	GetChatSettings(ctx context.Context, chatID int64) (storage.ChatSettings, error)
	UpdateChatSettings(ctx context.Context, chatID int64, mutate func(*storage.ChatSettings) error) (storage.ChatSettings, error)
}

type Punisher interface {
	Apply(ctx context.Context, req punish.Request) error
}

type Message struct {
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
}

type Module struct {
	counter  Counter
	store    SettingsStore
	punisher Punisher
	client   platform.Client
	audit    *audit.Logger
	defaults storage.FloodSettings
	enabled  bool
	logger   *zap.Logger
	clock    utils.Clock
}

func New(counter Counter, store SettingsStore, punisher Punisher, client platform.Client, auditLogger *audit.Logger, defaults storage.FloodSettings, enabled bool, logger *zap.Logger) *Module {
	return &Module{
		counter:  counter,
		store:    store,
		punisher: punisher,
		client:   client,
		audit:    auditLogger,
		defaults: defaults,
		enabled:  enabled,
		logger:   logger,
		clock:    utils.RealClock{},
	}
}

func (m *Module) WithClock(clock utils.Clock) {
	m.clock = clock
}

// HandleMessage counts one message from a non-admin group member and enforces the
// configured action when the limit is crossed. It reports whether it fired.
func (m *Module) HandleMessage(ctx context.Context, msg Message) (bool, error) {
	settings, err := m.store.GetChatSettings(ctx, msg.ChatID)
	if err != nil {
		return false, fmt.Errorf("load flood settings: %w", err)
	}
	if !settings.FloodEnabledOr(m.enabled) {
		return false, nil
	}
	cfg := settings.ResolveFlood(m.defaults)

	hit, err := m.counter.Hit(ctx, Key{ChatID: msg.ChatID, UserID: msg.UserID}, m.clock.Now(), cfg.Window, cfg.Limit)
	if err != nil {
		return false, err
	}
	if !hit.Triggered {
		return false, nil
	}
	metrics.FloodTriggers.Inc()

	name := punish.DisplayName(msg.UserName, msg.UserID)
	action, _ := punish.ParseAction(cfg.Action)
	if action == punish.ActionWarn || action == "" {
		m.send(ctx, msg.ChatID, fmt.Sprintf("%s, please don't flood the chat!", name))
		m.audit.Log(ctx, msg.ChatID, m.client.BotID(), audit.ActionFlood, msg.UserID, map[string]any{
			"limit": cfg.Limit,
			"time":  int64(cfg.Window / time.Second),
		})
		return true, nil
	}

	err = m.punisher.Apply(ctx, punish.Request{
		ChatID:     msg.ChatID,
		ActorID:    m.client.BotID(),
		TargetID:   msg.UserID,
		TargetName: name,
		Action:     action,
		Duration:   cfg.Duration,
		Reason:     "Flooding",
	})
	if err != nil {
		// the counter stays cleared; enforcement is not retried
		m.send(ctx, msg.ChatID, fmt.Sprintf("Failed to %s %s: %s", action, name, platform.Describe(err)))
		return true, err
	}
	return true, nil
}

// SetFlood handles "setflood <limit|off> [window] [action] [duration]".
func (m *Module) SetFlood(ctx context.Context, chatID, adminID int64, args []string) (string, error) {
	if len(args) == 0 {
		return m.Describe(ctx, chatID)
	}

	first := strings.ToLower(args[0])
	if first == "off" || first == "0" {
		disabled := false
		if _, err := m.store.UpdateChatSettings(ctx, chatID, func(s *storage.ChatSettings) error {
			s.FloodEnabled = &disabled
			return nil
		}); err != nil {
			return "", err
		}
		m.audit.Log(ctx, chatID, adminID, audit.ActionSettingsChange, 0, map[string]any{"setting": "antiflood", "enabled": false})
		return "Antiflood has been disabled.", nil
	}

	cfg, err := m.parseFlood(args)
	if err != nil {
		return "", err
	}

	enabled := true
	if _, err := m.store.UpdateChatSettings(ctx, chatID, func(s *storage.ChatSettings) error {
		s.FloodEnabled = &enabled
		s.Flood = &cfg
		return nil
	}); err != nil {
		return "", err
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionSettingsChange, 0, map[string]any{
		"setting":  "antiflood",
		"enabled":  true,
		"limit":    cfg.Limit,
		"time":     int64(cfg.Window / time.Second),
		"action":   cfg.Action,
		"duration": int64(cfg.Duration / time.Second),
	})
	return "Antiflood updated: " + describeFlood(cfg), nil
}

func (m *Module) parseFlood(args []string) (storage.FloodSettings, error) {
	cfg := m.defaults

	limit, err := strconv.Atoi(args[0])
	if err != nil {
		return storage.FloodSettings{}, utils.Invalid("Antiflood limit must be a number or 'off'.")
	}
	if limit < MinLimit {
		return storage.FloodSettings{}, utils.Invalid(fmt.Sprintf("Antiflood limit must be at least %d.", MinLimit))
	}
	cfg.Limit = limit

	if len(args) > 1 {
		window, err := parseSeconds(args[1])
		if errors.Is(err, utils.ErrDurationTooLong) {
			return storage.FloodSettings{}, err
		}
		if err != nil {
			return storage.FloodSettings{}, utils.Invalid("Time window must be a number.")
		}
		if window < MinWindow {
			return storage.FloodSettings{}, utils.Invalid(fmt.Sprintf("Time window must be at least %d seconds.", int(MinWindow/time.Second)))
		}
		cfg.Window = window
	}

	if len(args) > 2 {
		action, ok := punish.ParseAction(args[2])
		if !ok {
			return storage.FloodSettings{}, utils.Invalid("Action must be one of: warn, mute, kick, ban.")
		}
		cfg.Action = string(action)
	}

	if len(args) > 3 {
		duration, err := parseSeconds(args[3])
		if errors.Is(err, utils.ErrDurationTooLong) {
			return storage.FloodSettings{}, err
		}
		if err != nil {
			return storage.FloodSettings{}, utils.Invalid("Duration must be a number.")
		}
		if duration < MinDuration {
			return storage.FloodSettings{}, utils.Invalid(fmt.Sprintf("Duration must be at least %d seconds.", int(MinDuration/time.Second)))
		}
		cfg.Duration = duration
	}
	return cfg, nil
}

// Describe renders the effective configuration for a chat.
func (m *Module) Describe(ctx context.Context, chatID int64) (string, error) {
	settings, err := m.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !settings.FloodEnabledOr(m.enabled) {
		return "Antiflood is disabled in this chat.", nil
	}
	return "Antiflood is enabled: " + describeFlood(settings.ResolveFlood(m.defaults)), nil
}

func describeFlood(cfg storage.FloodSettings) string {
	text := fmt.Sprintf("%d messages in %s, action %s", cfg.Limit, utils.ReadableDuration(cfg.Window), cfg.Action)
	if cfg.Duration > 0 && (cfg.Action == string(punish.ActionMute) || cfg.Action == string(punish.ActionBan)) {
		text += " for " + utils.ReadableDuration(cfg.Duration)
	}
	return text + "."
}

// parseSeconds accepts a plain number of seconds or a duration token like "5m".
func parseSeconds(value string) (time.Duration, error) {
	d, err := utils.ParseDurationToken(value)
	if err == nil || errors.Is(err, utils.ErrDurationTooLong) {
		return d, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, utils.ErrDurationTooLong
		}
		return 0, err
	}
	return utils.Seconds(n)
}

func (m *Module) send(ctx context.Context, chatID int64, text string) {
	if err := m.client.SendMessage(ctx, chatID, text); err != nil {
		m.logger.Warn("flood notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
