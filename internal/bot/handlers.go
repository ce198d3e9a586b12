package bot

import (
	"context"

	"groupguard/internal/moderation"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

func (b *Bot) onMessage(c tele.Context) error {
	msg, ok := toMessage(c)
	if !ok {
		return nil
	}
	b.engine.HandleMessage(context.Background(), msg)
	return nil
}

func (b *Bot) onCommand(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg, ok := toMessage(c)
		if !ok {
			return nil
		}
		reply := b.engine.HandleCommand(context.Background(), moderation.Command{
			Message: msg,
			Name:    name,
			Payload: c.Message().Payload,
		})
		if reply == "" {
			return nil
		}
		return c.Reply(reply)
	}
}

func (b *Bot) onUnwarnButton(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}
	res := b.engine.HandleUnwarnButton(context.Background(), c.Chat().ID, toUser(c.Sender()), cb.Data)
	if !res.Edit {
		return c.RespondAlert(res.Text)
	}
	if err := c.Edit(res.Text); err != nil {
		b.logger.Warn("edit warn message failed", zap.Int64("chat_id", c.Chat().ID), zap.Error(err))
	}
	return nil
}

func toMessage(c tele.Context) (moderation.Message, bool) {
	m := c.Message()
	if m == nil || m.Sender == nil || m.Chat == nil {
		return moderation.Message{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := moderation.Message{
		ChatID:    m.Chat.ID,
		Group:     m.FromGroup(),
		MessageID: m.ID,
		From:      toUser(m.Sender),
		Text:      text,
	}
	if m.ReplyTo != nil && m.ReplyTo.Sender != nil {
		reply := toUser(m.ReplyTo.Sender)
		msg.ReplyTo = &reply
	}
	return msg, true
}

func toUser(u *tele.User) moderation.User {
	return moderation.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		IsBot:     u.IsBot,
	}
}
