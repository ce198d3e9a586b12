// Package platform describes the moderation primitives the bot needs from the chat
// platform, independent of the client library that provides them.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Permissions are the eight member rights toggled by restrictions.
type Permissions struct {
	SendMessages bool `json:"can_send_messages"`
	SendMedia    bool `json:"can_send_media_messages"`
	SendPolls    bool `json:"can_send_polls"`
	SendOther    bool `json:"can_send_other_messages"`
	WebPreviews  bool `json:"can_add_web_page_previews"`
	ChangeInfo   bool `json:"can_change_info"`
	InviteUsers  bool `json:"can_invite_users"`
	PinMessages  bool `json:"can_pin_messages"`
}

// Button is an inline callback button attached to a sent message.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Client is implemented by the Telegram adapter. A zero until means permanent.
type Client interface {
	BotID() int64
	IsGroupAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	RestrictUser(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
	BanUser(ctx context.Context, chatID, userID int64, until time.Time) error
	UnbanUser(ctx context.Context, chatID, userID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string, buttons ...Button) error
}

type Kind string

const (
	KindPermission  Kind = "permission"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindUnknown     Kind = "unknown"
)

type Error struct {
	Kind Kind
	Op   string
	// Message is the platform's own description, shown to admins when present.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// Describe returns the text shown to users for a failed platform call.
func Describe(err error) string {
	var perr *Error
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
