package warns

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
	// MuteDuration applies when the warn punishment is mute.
	MuteDuration  = 24 * time.Hour
	DefaultReason = "No reason provided"
	// ButtonUnique identifies the inline "Remove warning" button.
	ButtonUnique = "unwarn"
)

var ErrNoWarnings = errors.New("user has no warnings")

type Store interface {
	GetChatSettings(ctx context.Context, chatID int64) (storage.ChatSettings, error)
	UpdateChatSettings(ctx context.Context, chatID int64, mutate func(*storage.ChatSettings) error) (storage.ChatSettings, error)
	UpdateWarnings(ctx context.Context, chatID, userID int64, mutate storage.WarningsMutation) ([]storage.Warning, error)
	GetKnownUser(ctx context.Context, userID int64) (storage.KnownUser, bool, error)
}

type Punisher interface {
	CheckTarget(ctx context.Context, chatID, actorID, targetID int64) error
	Apply(ctx context.Context, req punish.Request) error
}

type Target struct {
	ID   int64
	Name string
}

func (t Target) display() string {
	return punish.DisplayName(t.Name, t.ID)
}

type Result struct {
	Count     int
	Limit     int
	Escalated bool
}

type Module struct {
	store    Store
	punisher Punisher
	client   platform.Client
	audit    *audit.Logger
	defaults storage.WarnSettings
	logger   *zap.Logger
	clock    utils.Clock
}

func New(store Store, punisher Punisher, client platform.Client, auditLogger *audit.Logger, defaults storage.WarnSettings, logger *zap.Logger) *Module {
	return &Module{
		store:    store,
		punisher: punisher,
		client:   client,
		audit:    auditLogger,
		defaults: defaults,
		logger:   logger,
		clock:    utils.RealClock{},
	}
}

func (m *Module) WithClock(clock utils.Clock) {
	m.clock = clock
}

func (m *Module) settings(ctx context.Context, chatID int64) (storage.WarnSettings, error) {
	settings, err := m.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return storage.WarnSettings{}, err
	}
	return settings.ResolveWarn(m.defaults), nil
}

// Warn appends a warning and fires the configured punishment once the limit is reached.
// Guard failures come back as the punish sentinel errors.
func (m *Module) Warn(ctx context.Context, chatID, adminID int64, target Target, reason string) (Result, error) {
	if err := m.punisher.CheckTarget(ctx, chatID, adminID, target.ID); err != nil {
		return Result{}, err
	}
	cfg, err := m.settings(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}

	now := m.clock.Now()
	warning := storage.Warning{Reason: reason, IssuedBy: adminID, IssuedAt: now}
	if cfg.Expiry > 0 {
		expires := now.Add(cfg.Expiry)
		warning.ExpiresAt = &expires
	}

	var count int
	var escalated bool
	_, err = m.store.UpdateWarnings(ctx, chatID, target.ID, func(current []storage.Warning) ([]storage.Warning, bool, error) {
		active, _ := storage.PruneExpired(current, now)
		active = append(active, warning)
		count = len(active)
		escalated = count >= cfg.Limit
		if escalated {
			return []storage.Warning{}, true, nil
		}
		return active, true, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("update warnings: %w", err)
	}

	result := Result{Count: count, Limit: cfg.Limit, Escalated: escalated}
	metrics.WarningsIssued.WithLabelValues(strconv.FormatBool(escalated)).Inc()
	m.audit.Log(ctx, chatID, adminID, audit.ActionWarn, target.ID, map[string]any{
		"reason":     reason,
		"warn_count": count,
		"escalated":  escalated,
	})

	if !escalated {
		text := fmt.Sprintf("%s has been warned. (%d/%d)\nReason: %s", target.display(), count, cfg.Limit, reason)
		button := platform.Button{Text: "Remove warning", Unique: ButtonUnique, Data: strconv.FormatInt(target.ID, 10)}
		if err := m.client.SendMessage(ctx, chatID, text, button); err != nil {
			m.logger.Warn("warn notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return result, nil
	}

	action, ok := punish.ParseAction(cfg.Punishment)
	if !ok || action == punish.ActionWarn {
		action = punish.ActionBan
	}
	req := punish.Request{
		ChatID:     chatID,
		ActorID:    m.client.BotID(),
		TargetID:   target.ID,
		TargetName: target.Name,
		Action:     action,
		Reason:     fmt.Sprintf("Reached warn limit (%d)", cfg.Limit),
	}
	if action == punish.ActionMute {
		req.Duration = MuteDuration
	}
	if err := m.punisher.Apply(ctx, req); err != nil {
		return result, err
	}
	return result, nil
}

// RemoveLast drops the most recent active warning and returns how many remain.
func (m *Module) RemoveLast(ctx context.Context, chatID, adminID, userID int64) (int, error) {
	now := m.clock.Now()
	var remaining int
	var removed bool
	_, err := m.store.UpdateWarnings(ctx, chatID, userID, func(current []storage.Warning) ([]storage.Warning, bool, error) {
		active, pruned := storage.PruneExpired(current, now)
		removed = len(active) > 0
		if removed {
			active = active[:len(active)-1]
		}
		remaining = len(active)
		return active, removed || pruned, nil
	})
	if err != nil {
		return 0, err
	}
	if !removed {
		return 0, ErrNoWarnings
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionUnwarn, userID, map[string]any{"warn_count": remaining})
	return remaining, nil
}

func (m *Module) Unwarn(ctx context.Context, chatID, adminID int64, target Target) (string, error) {
	remaining, err := m.RemoveLast(ctx, chatID, adminID, target.ID)
	if errors.Is(err, ErrNoWarnings) {
		return "This user has no warnings to remove.", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed a warning for %s. They now have %d warnings.", target.display(), remaining), nil
}

func (m *Module) Reset(ctx context.Context, chatID, adminID int64, target Target) (string, error) {
	if _, err := m.store.UpdateWarnings(ctx, chatID, target.ID, func(current []storage.Warning) ([]storage.Warning, bool, error) {
		return []storage.Warning{}, len(current) > 0, nil
	}); err != nil {
		return "", err
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionResetWarns, target.ID, nil)
	return fmt.Sprintf("All warnings for %s have been reset.", target.display()), nil
}

// List prunes expired warnings, persisting the pruned list, and renders the rest.
func (m *Module) List(ctx context.Context, chatID int64, target Target) (string, error) {
	cfg, err := m.settings(ctx, chatID)
	if err != nil {
		return "", err
	}
	now := m.clock.Now()
	active, err := m.store.UpdateWarnings(ctx, chatID, target.ID, func(current []storage.Warning) ([]storage.Warning, bool, error) {
		active, pruned := storage.PruneExpired(current, now)
		return active, pruned, nil
	})
	if err != nil {
		return "", err
	}
	if len(active) == 0 {
		return fmt.Sprintf("%s has no warnings.", target.display()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Warnings for %s: %d/%d\n", target.display(), len(active), cfg.Limit)
	for i, w := range active {
		fmt.Fprintf(&b, "\n%d. Warned by %s on %s\n   Reason: %s", i+1, m.issuerName(ctx, w.IssuedBy), w.IssuedAt.UTC().Format("2006-01-02 15:04:05"), w.Reason)
	}
	return b.String(), nil
}

func (m *Module) issuerName(ctx context.Context, userID int64) string {
	user, ok, err := m.store.GetKnownUser(ctx, userID)
	if err != nil || !ok || user.FirstName == "" {
		return fmt.Sprintf("Admin %d", userID)
	}
	return user.FirstName
}

// Settings renders the effective warn configuration.
func (m *Module) Settings(ctx context.Context, chatID int64) (string, error) {
	cfg, err := m.settings(ctx, chatID)
	if err != nil {
		return "", err
	}
	expiry := "Never (warnings don't expire)"
	if cfg.Expiry > 0 {
		expiry = utils.ReadableDuration(cfg.Expiry)
	}
	return fmt.Sprintf("Current warn settings:\nWarn limit: %d\nWarn expiry: %s\nWarn punishment: %s\n\n"+
		"To change settings, use:\n/warnmode limit <number>\n/warnmode expiry <seconds, 1d or 'never'>\n/warnmode punishment <ban/kick/mute>",
		cfg.Limit, expiry, cfg.Punishment), nil
}

var warnModeUsage = map[string]string{
	"limit":      "<number>",
	"expiry":     "<seconds, 1d or 'never'>",
	"punishment": "<ban/kick/mute>",
}

// SetMode handles "warnmode <limit|expiry|punishment> <value>".
func (m *Module) SetMode(ctx context.Context, chatID, adminID int64, args []string) (string, error) {
	if len(args) == 0 {
		return m.Settings(ctx, chatID)
	}
	setting := strings.ToLower(args[0])
	if len(args) < 2 {
		usage, ok := warnModeUsage[setting]
		if !ok {
			return "", utils.Invalid("Invalid setting. Available options: limit, expiry, punishment.")
		}
		return "", utils.Invalid(fmt.Sprintf("Missing value for %s. Usage: /warnmode %s %s", setting, setting, usage))
	}
	value := strings.ToLower(args[1])

	var apply func(*storage.ChatSettings)
	var reply string
	var logged any

	switch setting {
	case "limit":
		limit, err := strconv.Atoi(value)
		if err != nil {
			return "", utils.Invalid("Warn limit must be a number.")
		}
		if limit < 1 {
			return "", utils.Invalid("Warn limit must be at least 1.")
		}
		apply = func(s *storage.ChatSettings) { s.WarnLimit = &limit }
		reply = fmt.Sprintf("Warn limit set to %d warnings.", limit)
		logged = limit
	case "expiry":
		expiry, err := parseExpiry(value)
		if err != nil {
			return "", err
		}
		apply = func(s *storage.ChatSettings) { s.WarnExpiry = &expiry }
		if expiry == 0 {
			reply = "Warnings will now never expire."
			logged = nil
		} else {
			reply = fmt.Sprintf("Warnings will now expire after %s.", utils.ReadableDuration(expiry))
			logged = int64(expiry / time.Second)
		}
	case "punishment":
		action, ok := punish.ParseAction(value)
		if !ok || action == punish.ActionWarn {
			return "", utils.Invalid("Punishment must be one of: ban, kick, mute.")
		}
		punishment := string(action)
		apply = func(s *storage.ChatSettings) { s.WarnPunishment = &punishment }
		reply = fmt.Sprintf("Punishment for reaching warn limit set to: %s.", punishment)
		logged = punishment
	default:
		return "", utils.Invalid("Invalid setting. Available options: limit, expiry, punishment.")
	}

	if _, err := m.store.UpdateChatSettings(ctx, chatID, func(s *storage.ChatSettings) error {
		apply(s)
		return nil
	}); err != nil {
		return "", err
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionSettingsChange, 0, map[string]any{
		"setting": "warns." + setting,
		"value":   logged,
	})
	return reply, nil
}

// parseExpiry accepts "never", a number of seconds, or a duration token. Zero means never.
func parseExpiry(value string) (time.Duration, error) {
	if value == "never" {
		return 0, nil
	}
	d, err := utils.ParseDurationToken(value)
	if err == nil || errors.Is(err, utils.ErrDurationTooLong) {
		return d, err
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(value, "-") {
			return 0, utils.ErrDurationTooLong
		}
		return 0, utils.Invalid("Expiry time must be a number of seconds or 'never'.")
	}
	if seconds < 0 {
		return 0, utils.Invalid("Expiry time cannot be negative.")
	}
	return utils.Seconds(seconds)
}
