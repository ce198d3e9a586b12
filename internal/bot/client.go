package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"groupguard/internal/platform"

	tele "gopkg.in/telebot.v3"
)

// Client implements platform.Client on top of a telebot session.
type Client struct {
	tb       *tele.Bot
	adminTTL time.Duration

	adminMu sync.Mutex
	admins  map[adminKey]adminEntry
}

type adminKey struct {
	chatID int64
	userID int64
}

type adminEntry struct {
	admin   bool
	expires time.Time
}

// NewClient wraps tb. A zero adminTTL disables the admin status cache.
func NewClient(tb *tele.Bot, adminTTL time.Duration) *Client {
	return &Client{
		tb:       tb,
		adminTTL: adminTTL,
		admins:   make(map[adminKey]adminEntry),
	}
}

func (c *Client) BotID() int64 {
	if c.tb.Me == nil {
		return 0
	}
	return c.tb.Me.ID
}

func (c *Client) IsGroupAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	key := adminKey{chatID: chatID, userID: userID}
	now := time.Now()
	if c.adminTTL > 0 {
		c.adminMu.Lock()
		entry, ok := c.admins[key]
		c.adminMu.Unlock()
		if ok && now.Before(entry.expires) {
			return entry.admin, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := c.tb.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return false, classify("get_chat_member", err)
	}
	admin := member.Role == tele.Creator || member.Role == tele.Administrator

	if c.adminTTL > 0 {
		c.adminMu.Lock()
		c.admins[key] = adminEntry{admin: admin, expires: now.Add(c.adminTTL)}
		c.adminMu.Unlock()
	}
	return admin, nil
}

func (c *Client) RestrictUser(ctx context.Context, chatID, userID int64, perms platform.Permissions, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member := &tele.ChatMember{
		User:            &tele.User{ID: userID},
		Rights:          toRights(perms),
		RestrictedUntil: untilDate(until),
	}
	return classify("restrict", c.tb.Restrict(&tele.Chat{ID: chatID}, member))
}

func (c *Client) BanUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member := &tele.ChatMember{
		User:            &tele.User{ID: userID},
		RestrictedUntil: untilDate(until),
	}
	return classify("ban", c.tb.Ban(&tele.Chat{ID: chatID}, member))
}

func (c *Client) UnbanUser(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("unban", c.tb.Unban(&tele.Chat{ID: chatID}, &tele.User{ID: userID}, true))
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return classify("delete_message", c.tb.Delete(msg))
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, buttons ...platform.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var opts []interface{}
	if markup := inlineMarkup(buttons); markup != nil {
		opts = append(opts, markup)
	}
	_, err := c.tb.Send(&tele.Chat{ID: chatID}, text, opts...)
	return classify("send_message", err)
}

func inlineMarkup(buttons []platform.Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	btns := make([]tele.Btn, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, markup.Data(b.Text, b.Unique, b.Data))
	}
	markup.Inline(markup.Row(btns...))
	return markup
}

// toRights maps the eight group permissions. The granular media rights follow SendMedia.
func toRights(p platform.Permissions) tele.Rights {
	return tele.Rights{
		CanSendMessages:   p.SendMessages,
		CanSendMedia:      p.SendMedia,
		CanSendAudios:     p.SendMedia,
		CanSendDocuments:  p.SendMedia,
		CanSendPhotos:     p.SendMedia,
		CanSendVideos:     p.SendMedia,
		CanSendVideoNotes: p.SendMedia,
		CanSendVoiceNotes: p.SendMedia,
		CanSendPolls:      p.SendPolls,
		CanSendOther:      p.SendOther,
		CanAddPreviews:    p.WebPreviews,
		CanChangeInfo:     p.ChangeInfo,
		CanInviteUsers:    p.InviteUsers,
		CanPinMessages:    p.PinMessages,
	}
}

func untilDate(until time.Time) int64 {
	if until.IsZero() {
		return tele.Forever()
	}
	return until.Unix()
}

// classify converts telebot failures into platform errors so callers can branch
// on the kind instead of the message text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &platform.Error{
			Kind:    platform.KindRateLimited,
			Op:      op,
			Message: fmt.Sprintf("too many requests, retry after %d seconds", flood.RetryAfter),
			Err:     err,
		}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return &platform.Error{Kind: kindFor(apiErr.Code, apiErr.Description), Op: op, Message: description(apiErr), Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &platform.Error{Kind: platform.KindTransient, Op: op, Err: err}
	}

	// Unlisted API errors arrive as "telegram: <description> (<code>)".
	if code, desc, ok := parseAPIError(err.Error()); ok {
		return &platform.Error{Kind: kindFor(code, desc), Op: op, Message: stripPrefix(desc), Err: err}
	}
	return &platform.Error{Kind: platform.KindUnknown, Op: op, Err: err}
}

func kindFor(code int, desc string) platform.Kind {
	lower := strings.ToLower(desc)
	switch {
	case code == 403:
		return platform.KindPermission
	case code == 429:
		return platform.KindRateLimited
	case code >= 500:
		return platform.KindTransient
	case strings.Contains(lower, "not enough rights"),
		strings.Contains(lower, "administrator"),
		strings.Contains(lower, "can't be deleted"),
		strings.Contains(lower, "have no rights"),
		strings.Contains(lower, "can't remove chat owner"):
		return platform.KindPermission
	case code == 404, strings.Contains(lower, "not found"), strings.Contains(lower, "participant_id_invalid"):
		return platform.KindNotFound
	}
	return platform.KindUnknown
}

func description(err *tele.Error) string {
	if err.Message != "" {
		return err.Message
	}
	return stripPrefix(err.Description)
}

func stripPrefix(desc string) string {
	for _, prefix := range []string{"Bad Request: ", "Forbidden: ", "Not Found: "} {
		desc = strings.TrimPrefix(desc, prefix)
	}
	return desc
}

func parseAPIError(text string) (int, string, bool) {
	if !strings.HasPrefix(text, "telegram: ") || !strings.HasSuffix(text, ")") {
		return 0, "", false
	}
	open := strings.LastIndex(text, " (")
	if open < 0 {
		return 0, "", false
	}
	code, err := strconv.Atoi(text[open+2 : len(text)-1])
	if err != nil {
		return 0, "", false
	}
	return code, strings.TrimPrefix(text[:open], "telegram: "), true
}
