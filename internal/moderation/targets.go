package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"groupguard/internal/modules/punish"
	"groupguard/internal/modules/warns"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

type target struct {
	ID   int64
	Name string
}

func (t target) display() string {
	return punish.DisplayName(t.Name, t.ID)
}

func (t target) warnTarget() warns.Target {
	return warns.Target{ID: t.ID, Name: t.Name}
}

var errNoTarget = errors.New("no target")

// resolveTarget picks the user a command acts on: the author of the replied-to
// message, else a leading numeric ID or @username. It returns the remaining payload.
func (e *Engine) resolveTarget(ctx context.Context, cmd Command) (target, string, error) {
	if cmd.ReplyTo != nil {
		return target{ID: cmd.ReplyTo.ID, Name: cmd.ReplyTo.Name()}, strings.TrimSpace(cmd.Payload), nil
	}
	first, rest := splitFirst(cmd.Payload)
	if first == "" {
		return target{}, rest, errNoTarget
	}
	if strings.HasPrefix(first, "@") {
		user, ok, err := e.store.LookupUsername(ctx, first)
		if err != nil {
			return target{}, rest, err
		}
		if !ok {
			return target{}, rest, utils.Invalid(fmt.Sprintf("I don't know who %s is. They need to send a message here first.", first))
		}
		return target{ID: user.UserID, Name: knownName(user.FirstName, user.Username)}, rest, nil
	}
	id, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return target{}, strings.TrimSpace(cmd.Payload), errNoTarget
	}
	return e.targetByID(ctx, id), rest, nil
}

func (e *Engine) targetByID(ctx context.Context, id int64) target {
	user, ok, err := e.store.GetKnownUser(ctx, id)
	if err != nil {
		e.logger.Debug("known user lookup failed", zap.Int64("user_id", id), zap.Error(err))
	}
	if !ok {
		return target{ID: id}
	}
	return target{ID: id, Name: knownName(user.FirstName, user.Username)}
}

func knownName(firstName, username string) string {
	if firstName != "" {
		return firstName
	}
	if username != "" {
		return "@" + username
	}
	return ""
}

func splitFirst(payload string) (string, string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", ""
	}
	idx := strings.IndexAny(payload, " \t\n")
	if idx < 0 {
		return payload, ""
	}
	return payload[:idx], strings.TrimSpace(payload[idx+1:])
}

// guardMessage turns target guard failures into the reply for verb.
func guardMessage(verb string, err error) (string, bool) {
	switch {
	case errors.Is(err, punish.ErrTargetIsBot):
		return fmt.Sprintf("I'm not going to %s myself.", verb), true
	case errors.Is(err, punish.ErrTargetIsSelf):
		return fmt.Sprintf("You can't %s yourself.", verb), true
	case errors.Is(err, punish.ErrTargetIsAdmin):
		return fmt.Sprintf("I can't %s administrators.", verb), true
	}
	return "", false
}

func missingTarget(verb string) string {
	return fmt.Sprintf("You must specify a user to %s. You can reply to a message or provide a username/user ID.", verb)
}
