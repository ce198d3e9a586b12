// Package moderation routes inbound group messages and admin commands through the
// anti-flood, blacklist, warning and punishment modules. It knows nothing about the
// transport; internal/bot translates platform updates into the types below.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupguard/internal/analytics"
	"groupguard/internal/metrics"
	"groupguard/internal/modules/antiflood"
	"groupguard/internal/modules/audit"
	"groupguard/internal/modules/blacklist"
	"groupguard/internal/modules/punish"
	"groupguard/internal/modules/warns"
	"groupguard/internal/platform"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

type Store interface {
	RememberUser(ctx context.Context, user storage.KnownUser) error
	LookupUsername(ctx context.Context, username string) (storage.KnownUser, bool, error)
	GetKnownUser(ctx context.Context, userID int64) (storage.KnownUser, bool, error)
	ListBans(ctx context.Context, chatID int64) ([]storage.BanRecord, error)
	GetChatSettings(ctx context.Context, chatID int64) (storage.ChatSettings, error)
	UpdateChatSettings(ctx context.Context, chatID int64, mutate func(*storage.ChatSettings) error) (storage.ChatSettings, error)
}

type User struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// Name is the display name used in chat replies.
func (u User) Name() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return punish.DisplayName("", u.ID)
}

type Message struct {
	ChatID    int64
	Group     bool
	MessageID int
	From      User
	Text      string
	// ReplyTo is the author of the message being replied to, if any.
	ReplyTo *User
}

type Command struct {
	Message
	Name    string
	Payload string
}

type Modules struct {
	Flood     *antiflood.Module
	Blacklist *blacklist.Module
	Warns     *warns.Module
	Executor  *punish.Executor
	Audit     *audit.Logger
	Analytics *analytics.Service
}

type Engine struct {
	client    platform.Client
	store     Store
	flood     *antiflood.Module
	blacklist *blacklist.Module
	warns     *warns.Module
	executor  *punish.Executor
	audit     *audit.Logger
	analytics *analytics.Service
	logger    *zap.Logger
	clock     utils.Clock
}

func New(client platform.Client, store Store, modules Modules, logger *zap.Logger) *Engine {
	return &Engine{
		client:    client,
		store:     store,
		flood:     modules.Flood,
		blacklist: modules.Blacklist,
		warns:     modules.Warns,
		executor:  modules.Executor,
		audit:     modules.Audit,
		analytics: modules.Analytics,
		logger:    logger,
		clock:     utils.RealClock{},
	}
}

func (e *Engine) WithClock(clock utils.Clock) {
	e.clock = clock
}

// HandleMessage runs one group message through anti-flood and then the blacklist.
// Admins and bots are never moderated. Failures are logged; the pipeline keeps going.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	if !msg.Group || msg.From.ID == 0 || msg.From.IsBot {
		return
	}
	start := time.Now()
	defer func() {
		metrics.MessageLatency.Observe(time.Since(start).Seconds())
	}()

	e.remember(ctx, msg.From)
	if msg.ReplyTo != nil && !msg.ReplyTo.IsBot {
		e.remember(ctx, *msg.ReplyTo)
	}

	admin, err := e.client.IsGroupAdmin(ctx, msg.ChatID, msg.From.ID)
	if err != nil {
		e.logger.Warn("admin lookup failed, skipping moderation", zap.Int64("chat_id", msg.ChatID), zap.Int64("user_id", msg.From.ID), zap.Error(err))
		return
	}
	if admin {
		return
	}

	if e.flood != nil {
		_, err := e.flood.HandleMessage(ctx, antiflood.Message{
			ChatID:    msg.ChatID,
			UserID:    msg.From.ID,
			UserName:  msg.From.Name(),
			MessageID: msg.MessageID,
		})
		if err != nil {
			e.logger.Warn("antiflood failed", zap.Int64("chat_id", msg.ChatID), zap.Int64("user_id", msg.From.ID), zap.Error(err))
		}
	}

	if e.blacklist != nil && msg.Text != "" {
		_, err := e.blacklist.HandleMessage(ctx, blacklist.Message{
			ChatID:    msg.ChatID,
			UserID:    msg.From.ID,
			UserName:  msg.From.Name(),
			MessageID: msg.MessageID,
			Text:      msg.Text,
		})
		if err != nil {
			e.logger.Warn("blacklist failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		}
	}
}

func (e *Engine) remember(ctx context.Context, user User) {
	if user.ID == 0 {
		return
	}
	if err := e.store.RememberUser(ctx, storage.KnownUser{UserID: user.ID, Username: user.Username, FirstName: user.FirstName}); err != nil {
		e.logger.Debug("remember user failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

type CallbackResult struct {
	// Text replaces the message carrying the button when Edit is set,
	// otherwise it is shown to the presser as an alert.
	Text string
	Edit bool
}

// HandleUnwarnButton serves the "Remove warning" button under a warn reply.
func (e *Engine) HandleUnwarnButton(ctx context.Context, chatID int64, presser User, data string) CallbackResult {
	admin, err := e.client.IsGroupAdmin(ctx, chatID, presser.ID)
	if err != nil || !admin {
		return CallbackResult{Text: "You don't have permission to remove warnings."}
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return CallbackResult{Text: "This button is no longer valid."}
	}
	remaining, err := e.warns.RemoveLast(ctx, chatID, presser.ID, userID)
	if err != nil {
		if errors.Is(err, warns.ErrNoWarnings) {
			return CallbackResult{Text: "This user has no warnings to remove."}
		}
		e.logger.Warn("unwarn button failed", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
		return CallbackResult{Text: "Failed to remove the warning."}
	}
	target := e.targetByID(ctx, userID)
	return CallbackResult{
		Text: fmt.Sprintf("Warning removed by %s. %s now has %d warnings.", presser.Name(), target.display(), remaining),
		Edit: true,
	}
}
