package moderation

import (
	"context"
	"fmt"
	"strings"

	"groupguard/internal/modules/audit"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

func (e *Engine) start(_ context.Context, cmd Command) (string, error) {
	if !cmd.Group {
		return fmt.Sprintf("Hello %s! I'm GroupGuard, a Telegram group management bot.\n\n"+
			"Add me to your group and I'll help you manage it.\n\n"+
			"Use /help to see available commands.", cmd.From.Name()), nil
	}
	return "I'm GroupGuard, a Telegram group management bot.\nUse /help to see available commands.", nil
}

// help lists the general commands, and the admin ones when an admin asks in a group.
func (e *Engine) help(ctx context.Context, cmd Command) (string, error) {
	admin := false
	if cmd.Group {
		var err error
		admin, err = e.client.IsGroupAdmin(ctx, cmd.ChatID, cmd.From.ID)
		if err != nil {
			e.logger.Debug("admin check for help failed", zap.Int64("chat_id", cmd.ChatID), zap.Error(err))
			admin = false
		}
	}

	var general, restricted []string
	for _, name := range Commands() {
		c := commands[name]
		if c.adminOnly {
			restricted = append(restricted, c.usage)
		} else {
			general = append(general, c.usage)
		}
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, line := range general {
		b.WriteString("\n" + line)
	}
	if admin {
		b.WriteString("\n\nAdmin commands:\n")
		for _, line := range restricted {
			b.WriteString("\n" + line)
		}
	}
	return b.String(), nil
}

func (e *Engine) rules(ctx context.Context, cmd Command) (string, error) {
	settings, err := e.store.GetChatSettings(ctx, cmd.ChatID)
	if err != nil {
		return "", err
	}
	if settings.Rules == "" {
		return "No rules have been set for this group yet. Admins can set rules with /setrules command.", nil
	}
	return "Group rules:\n\n" + settings.Rules, nil
}

func (e *Engine) setRules(ctx context.Context, cmd Command) (string, error) {
	text := strings.TrimSpace(cmd.Payload)
	if text == "" {
		return "", utils.Invalid("Please provide rules text. Example: /setrules No spamming. Be respectful.")
	}
	if _, err := e.store.UpdateChatSettings(ctx, cmd.ChatID, func(s *storage.ChatSettings) error {
		s.Rules = text
		return nil
	}); err != nil {
		return "", err
	}
	e.audit.Log(ctx, cmd.ChatID, cmd.From.ID, audit.ActionRulesSet, 0, map[string]any{"rules": text})
	return "Group rules have been updated successfully.", nil
}
