package punish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupguard/internal/metrics"
	"groupguard/internal/modules/audit"
	"groupguard/internal/platform"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

type Action string

const (
	ActionWarn     Action = "warn"
	ActionMute     Action = "mute"
	ActionKick     Action = "kick"
	ActionBan      Action = "ban"
	ActionRestrict Action = "restrict"
)

var (
	ErrTargetIsBot   = errors.New("target is the bot")
	ErrTargetIsSelf  = errors.New("target is the acting admin")
	ErrTargetIsAdmin = errors.New("target is a chat administrator")
	ErrUnknownAction = errors.New("unknown punishment action")
	ErrMissingTarget = errors.New("no target user")

	// ErrBanNotRecorded means the platform ban took effect but the ban record was not saved.
	ErrBanNotRecorded = errors.New("ban applied but not recorded")
)

func ParseAction(value string) (Action, bool) {
	switch Action(strings.ToLower(value)) {
	case ActionWarn:
		return ActionWarn, true
	case ActionMute:
		return ActionMute, true
	case ActionKick:
		return ActionKick, true
	case ActionBan:
		return ActionBan, true
	}
	return "", false
}

type BanStore interface {
	PutBan(ctx context.Context, record storage.BanRecord) error
	DeleteBan(ctx context.Context, chatID, userID int64) (bool, error)
}

type Auditor interface {
	Log(ctx context.Context, chatID, actorID int64, action string, targetID int64, details map[string]any)
}

type Request struct {
	ChatID     int64
	ActorID    int64
	TargetID   int64
	TargetName string
	Action     Action
	// Duration of zero is permanent for bans and restrictions.
	Duration time.Duration
	Reason   string
	// Restriction overrides the default mute set for ActionMute and ActionRestrict.
	Restriction *Restriction
}

type Executor struct {
	client platform.Client
	bans   BanStore
	audit  Auditor
	logger *zap.Logger
	clock  utils.Clock
}

func NewExecutor(client platform.Client, bans BanStore, auditor Auditor, logger *zap.Logger) *Executor {
	return &Executor{client: client, bans: bans, audit: auditor, logger: logger, clock: utils.RealClock{}}
}

func (e *Executor) WithClock(clock utils.Clock) {
	e.clock = clock
}

// CheckTarget applies the guard clauses shared by every enforcement path.
// An admin lookup failure is returned as is so callers never punish on doubt.
func (e *Executor) CheckTarget(ctx context.Context, chatID, actorID, targetID int64) error {
	if targetID == 0 {
		return ErrMissingTarget
	}
	if targetID == e.client.BotID() {
		return ErrTargetIsBot
	}
	if targetID == actorID {
		return ErrTargetIsSelf
	}
	admin, err := e.client.IsGroupAdmin(ctx, chatID, targetID)
	if err != nil {
		return err
	}
	if admin {
		return ErrTargetIsAdmin
	}
	return nil
}

// Apply performs req against the platform, then records and announces it.
func (e *Executor) Apply(ctx context.Context, req Request) error {
	if err := e.CheckTarget(ctx, req.ChatID, req.ActorID, req.TargetID); err != nil {
		return err
	}

	var err error
	switch req.Action {
	case ActionBan:
		err = e.ban(ctx, req)
	case ActionKick:
		err = e.kick(ctx, req)
	case ActionMute, ActionRestrict:
		err = e.restrict(ctx, req)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if errors.Is(err, ErrBanNotRecorded) {
		metrics.ActionsTotal.WithLabelValues(string(req.Action), "ok").Inc()
		e.notify(ctx, req.ChatID, announcement(req))
		return err
	}
	if err != nil {
		metrics.ActionsTotal.WithLabelValues(string(req.Action), string(platform.KindOf(err))).Inc()
		e.logger.Warn("punishment failed",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.TargetID),
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
		return err
	}
	metrics.ActionsTotal.WithLabelValues(string(req.Action), "ok").Inc()
	e.notify(ctx, req.ChatID, announcement(req))
	return nil
}

func (e *Executor) ban(ctx context.Context, req Request) error {
	var until time.Time
	record := storage.BanRecord{
		ChatID:    req.ChatID,
		UserID:    req.TargetID,
		BannedBy:  req.ActorID,
		Reason:    req.Reason,
		CreatedAt: e.clock.Now(),
	}
	if req.Duration > 0 {
		until = e.clock.Now().Add(req.Duration)
		record.ExpiresAt = &until
	}
	if err := e.client.BanUser(ctx, req.ChatID, req.TargetID, until); err != nil {
		return err
	}
	recordErr := e.bans.PutBan(ctx, record)
	if recordErr != nil {
		e.logger.Error("ban record write failed", zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", req.TargetID), zap.Error(recordErr))
	}

	details := map[string]any{"reason": req.Reason}
	if req.Duration > 0 {
		details["duration"] = int64(req.Duration / time.Second)
	}
	e.audit.Log(ctx, req.ChatID, req.ActorID, audit.ActionBan, req.TargetID, details)
	if recordErr != nil {
		return fmt.Errorf("%w: %w", ErrBanNotRecorded, recordErr)
	}
	return nil
}

// kick bans and immediately unbans so the user may rejoin.
func (e *Executor) kick(ctx context.Context, req Request) error {
	if err := e.client.BanUser(ctx, req.ChatID, req.TargetID, time.Time{}); err != nil {
		return err
	}
	if err := e.client.UnbanUser(ctx, req.ChatID, req.TargetID); err != nil {
		return err
	}
	e.audit.Log(ctx, req.ChatID, req.ActorID, audit.ActionKick, req.TargetID, map[string]any{"reason": req.Reason})
	return nil
}

func (e *Executor) restrict(ctx context.Context, req Request) error {
	var perms platform.Permissions
	if req.Restriction != nil {
		perms = req.Restriction.Perms
	}
	var until time.Time
	if req.Duration > 0 {
		until = e.clock.Now().Add(req.Duration)
	}
	if err := e.client.RestrictUser(ctx, req.ChatID, req.TargetID, perms, until); err != nil {
		return err
	}

	details := map[string]any{"restrictions": permissionDetails(perms)}
	if req.Duration > 0 {
		details["duration"] = int64(req.Duration / time.Second)
	}
	if req.Reason != "" {
		details["reason"] = req.Reason
	}
	e.audit.Log(ctx, req.ChatID, req.ActorID, audit.ActionRestrict, req.TargetID, details)
	return nil
}

// Unban lifts a ban. Lifting a ban that was never recorded is not an error;
// the returned bool tells whether a record existed.
func (e *Executor) Unban(ctx context.Context, chatID, actorID, targetID int64, targetName string) (bool, error) {
	if targetID == 0 {
		return false, ErrMissingTarget
	}
	if targetID == e.client.BotID() {
		return false, ErrTargetIsBot
	}
	if err := e.client.UnbanUser(ctx, chatID, targetID); err != nil {
		metrics.ActionsTotal.WithLabelValues("unban", string(platform.KindOf(err))).Inc()
		return false, err
	}
	existed, err := e.bans.DeleteBan(ctx, chatID, targetID)
	if err != nil {
		return false, err
	}
	metrics.ActionsTotal.WithLabelValues("unban", "ok").Inc()
	if !existed {
		e.notify(ctx, chatID, fmt.Sprintf("%s is not banned.", DisplayName(targetName, targetID)))
		return false, nil
	}
	e.audit.Log(ctx, chatID, actorID, audit.ActionUnban, targetID, nil)
	e.notify(ctx, chatID, fmt.Sprintf("%s has been unbanned.", DisplayName(targetName, targetID)))
	return true, nil
}

func (e *Executor) notify(ctx context.Context, chatID int64, text string) {
	if err := e.client.SendMessage(ctx, chatID, text); err != nil {
		e.logger.Warn("notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func announcement(req Request) string {
	name := DisplayName(req.TargetName, req.TargetID)
	var b strings.Builder
	switch req.Action {
	case ActionBan:
		b.WriteString(name + " has been banned")
	case ActionKick:
		b.WriteString(name + " has been kicked")
	case ActionMute:
		b.WriteString(name + " has been muted")
	case ActionRestrict:
		b.WriteString(name + " has been restricted")
	}
	if req.Action != ActionKick {
		if req.Duration > 0 {
			b.WriteString(" for " + utils.ReadableDuration(req.Duration))
		} else {
			b.WriteString(" permanently")
		}
	}
	b.WriteString(".")
	if req.Reason != "" {
		b.WriteString("\nReason: " + req.Reason)
	}
	return b.String()
}

// DisplayName formats a user for chat messages.
func DisplayName(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("User %d", id)
}
