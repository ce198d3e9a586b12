package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"groupguard/internal/modules/punish"
	"groupguard/internal/platform"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

type commandFunc func(e *Engine, ctx context.Context, cmd Command) (string, error)

// command is one chat command. Commands marked anywhere also answer in private chats.
type command struct {
	adminOnly bool
	anywhere  bool
	usage     string
	run       commandFunc
}

var commands = map[string]command{
	"start":      {anywhere: true, usage: "/start - Introduce the bot", run: (*Engine).start},
	"rules":      {usage: "/rules - Show the group rules", run: (*Engine).rules},
	"setrules":   {adminOnly: true, usage: "/setrules <text> - Replace the group rules", run: (*Engine).setRules},
	"ban":        {adminOnly: true, usage: "/ban <user> [duration] [reason] - Ban a user", run: (*Engine).ban},
	"unban":      {adminOnly: true, usage: "/unban <user> - Lift a ban", run: (*Engine).unban},
	"kick":       {adminOnly: true, usage: "/kick <user> [reason] - Remove a user from the group", run: (*Engine).kick},
	"mute":       {adminOnly: true, usage: "/mute <user> [duration] [reason] - Mute a user", run: (*Engine).mute},
	"restrict":   {adminOnly: true, usage: "/restrict <user> <+/-permission...> [duration] - Change what a user may send", run: (*Engine).restrict},
	"banlist":    {adminOnly: true, usage: "/banlist - List banned users", run: (*Engine).banlist},
	"warn":       {adminOnly: true, usage: "/warn <user> [reason] - Warn a user", run: (*Engine).warn},
	"unwarn":     {adminOnly: true, usage: "/unwarn <user> - Remove a user's latest warning", run: (*Engine).unwarn},
	"resetwarns": {adminOnly: true, usage: "/resetwarns <user> - Clear a user's warnings", run: (*Engine).resetWarns},
	"warns":      {usage: "/warns [user] - Show active warnings", run: (*Engine).listWarns},
	"warnmode":   {adminOnly: true, usage: "/warnmode [limit|expiry|punishment] [value] - Show or change warning settings", run: (*Engine).warnMode},
	"setflood":   {adminOnly: true, usage: "/setflood <limit> [seconds] [action] [duration] | off - Configure antiflood", run: (*Engine).setFlood},
	"blacklist":  {adminOnly: true, usage: "/blacklist add|remove|list <words> - Manage blacklisted words", run: (*Engine).blacklistCommand},
	"logs":       {adminOnly: true, usage: "/logs [count] - Show recent moderation actions", run: (*Engine).logs},
	"modstats":   {adminOnly: true, usage: "/modstats [days] - Show moderation statistics", run: (*Engine).modStats},
}

// help reads the command table, so it is registered after initialization.
func init() {
	commands["help"] = command{anywhere: true, usage: "/help - List available commands", run: (*Engine).help}
}

// Commands lists the command names the engine answers to.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleCommand runs cmd and returns the text to reply with, or "" when the
// modules already posted everything the chat needs to see.
func (e *Engine) HandleCommand(ctx context.Context, cmd Command) string {
	name := strings.ToLower(cmd.Name)
	handler, ok := commands[name]
	if !ok {
		return ""
	}
	if !cmd.Group && !handler.anywhere {
		return "This command can only be used in groups."
	}
	e.remember(ctx, cmd.From)

	if handler.adminOnly {
		admin, err := e.client.IsGroupAdmin(ctx, cmd.ChatID, cmd.From.ID)
		if err != nil {
			e.logger.Warn("admin check failed", zap.Int64("chat_id", cmd.ChatID), zap.Int64("user_id", cmd.From.ID), zap.Error(err))
			return "I couldn't verify your admin status. Please try again."
		}
		if !admin {
			return "This command can only be used by group admins."
		}
	}

	reply, err := handler.run(e, ctx, cmd)
	if err == nil {
		return reply
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	e.logger.Error("command failed", zap.String("command", name), zap.Int64("chat_id", cmd.ChatID), zap.Error(err))
	return "Something went wrong while running this command."
}

// actionError maps a failed enforcement into the reply for verb.
func (e *Engine) actionError(verb string, t target, err error) (string, error) {
	if errors.Is(err, errNoTarget) || errors.Is(err, punish.ErrMissingTarget) {
		return missingTarget(verb), nil
	}
	if msg, ok := guardMessage(verb, err); ok {
		return msg, nil
	}
	if errors.Is(err, punish.ErrBanNotRecorded) {
		return fmt.Sprintf("%s was banned, but I couldn't save the ban record. It will be missing from /banlist.", t.display()), nil
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		return "", err
	}
	return fmt.Sprintf("Failed to %s %s: %s", verb, t.display(), platform.Describe(err)), nil
}

func (e *Engine) enforce(ctx context.Context, verb string, cmd Command, build func(t target, rest string) (punish.Request, error)) (string, error) {
	t, rest, err := e.resolveTarget(ctx, cmd)
	if err != nil {
		return e.actionError(verb, t, err)
	}
	req, err := build(t, rest)
	if err != nil {
		return "", err
	}
	req.ChatID = cmd.ChatID
	req.ActorID = cmd.From.ID
	req.TargetID = t.ID
	req.TargetName = t.Name
	if err := e.executor.Apply(ctx, req); err != nil {
		return e.actionError(verb, t, err)
	}
	return "", nil
}

func (e *Engine) ban(ctx context.Context, cmd Command) (string, error) {
	return e.enforce(ctx, "ban", cmd, func(_ target, rest string) (punish.Request, error) {
		duration, reason, err := utils.SplitDuration(rest)
		if err != nil {
			return punish.Request{}, err
		}
		return punish.Request{Action: punish.ActionBan, Duration: duration, Reason: reason}, nil
	})
}

func (e *Engine) kick(ctx context.Context, cmd Command) (string, error) {
	return e.enforce(ctx, "kick", cmd, func(_ target, rest string) (punish.Request, error) {
		return punish.Request{Action: punish.ActionKick, Reason: rest}, nil
	})
}

func (e *Engine) mute(ctx context.Context, cmd Command) (string, error) {
	return e.enforce(ctx, "mute", cmd, func(_ target, rest string) (punish.Request, error) {
		duration, reason, err := utils.SplitDuration(rest)
		if err != nil {
			return punish.Request{}, err
		}
		return punish.Request{Action: punish.ActionMute, Duration: duration, Reason: reason}, nil
	})
}

func (e *Engine) restrict(ctx context.Context, cmd Command) (string, error) {
	return e.enforce(ctx, "restrict", cmd, func(_ target, rest string) (punish.Request, error) {
		restriction, err := punish.ParseRestriction(strings.Fields(rest))
		if err != nil {
			var flagErr *punish.InvalidFlagError
			if errors.As(err, &flagErr) {
				return punish.Request{}, utils.Invalid(fmt.Sprintf("Unknown restriction %q. Use +/- with one of: %s, all.", flagErr.Token, strings.Join(punish.RestrictionFlags, ", ")))
			}
			return punish.Request{}, err
		}
		return punish.Request{Action: punish.ActionRestrict, Duration: restriction.Duration, Restriction: &restriction}, nil
	})
}

func (e *Engine) unban(ctx context.Context, cmd Command) (string, error) {
	t, _, err := e.resolveTarget(ctx, cmd)
	if err != nil {
		return e.actionError("unban", t, err)
	}
	if _, err := e.executor.Unban(ctx, cmd.ChatID, cmd.From.ID, t.ID, t.Name); err != nil {
		if errors.Is(err, punish.ErrTargetIsBot) {
			return "I'm not banned.", nil
		}
		return e.actionError("unban", t, err)
	}
	return "", nil
}

func (e *Engine) banlist(ctx context.Context, cmd Command) (string, error) {
	bans, err := e.store.ListBans(ctx, cmd.ChatID)
	if err != nil {
		return "", err
	}
	return e.formatBans(ctx, bans), nil
}

func (e *Engine) warn(ctx context.Context, cmd Command) (string, error) {
	t, rest, err := e.resolveTarget(ctx, cmd)
	if err != nil {
		return e.actionError("warn", t, err)
	}
	if _, err := e.warns.Warn(ctx, cmd.ChatID, cmd.From.ID, t.warnTarget(), rest); err != nil {
		if msg, ok := guardMessage("warn", err); ok {
			return msg, nil
		}
		return e.actionError("punish", t, err)
	}
	return "", nil
}

func (e *Engine) unwarn(ctx context.Context, cmd Command) (string, error) {
	t, _, err := e.resolveTarget(ctx, cmd)
	if err != nil {
		return e.actionError("remove a warning from", t, err)
	}
	return e.warns.Unwarn(ctx, cmd.ChatID, cmd.From.ID, t.warnTarget())
}

func (e *Engine) resetWarns(ctx context.Context, cmd Command) (string, error) {
	t, _, err := e.resolveTarget(ctx, cmd)
	if err != nil {
		return e.actionError("reset warnings for", t, err)
	}
	return e.warns.Reset(ctx, cmd.ChatID, cmd.From.ID, t.warnTarget())
}

// listWarns is open to everyone for their own warnings and to admins for anyone's.
func (e *Engine) listWarns(ctx context.Context, cmd Command) (string, error) {
	t, _, err := e.resolveTarget(ctx, cmd)
	if errors.Is(err, errNoTarget) {
		t, err = target{ID: cmd.From.ID, Name: cmd.From.Name()}, nil
	}
	if err != nil {
		return "", err
	}
	if t.ID != cmd.From.ID {
		admin, err := e.client.IsGroupAdmin(ctx, cmd.ChatID, cmd.From.ID)
		if err != nil {
			return "", err
		}
		if !admin {
			return "Only admins can view other users' warnings.", nil
		}
	}
	return e.warns.List(ctx, cmd.ChatID, t.warnTarget())
}

func (e *Engine) warnMode(ctx context.Context, cmd Command) (string, error) {
	return e.warns.SetMode(ctx, cmd.ChatID, cmd.From.ID, strings.Fields(cmd.Payload))
}

func (e *Engine) setFlood(ctx context.Context, cmd Command) (string, error) {
	return e.flood.SetFlood(ctx, cmd.ChatID, cmd.From.ID, strings.Fields(cmd.Payload))
}

func (e *Engine) blacklistCommand(ctx context.Context, cmd Command) (string, error) {
	return e.blacklist.Command(ctx, cmd.ChatID, cmd.From.ID, strings.Fields(cmd.Payload))
}

func (e *Engine) logs(ctx context.Context, cmd Command) (string, error) {
	limit := 0
	if first, _ := splitFirst(cmd.Payload); first != "" {
		n, err := strconv.Atoi(first)
		if err != nil {
			return "", utils.Invalid("Usage: /logs [number of entries, up to 50]")
		}
		limit = n
	}
	entries, err := e.audit.Query(ctx, cmd.ChatID, limit)
	if err != nil {
		return "", err
	}
	return e.formatLogs(ctx, entries), nil
}

func (e *Engine) modStats(ctx context.Context, cmd Command) (string, error) {
	days := defaultStatsDays
	if first, _ := splitFirst(cmd.Payload); first != "" {
		n, err := strconv.Atoi(first)
		if err != nil || n < 1 || n > maxStatsDays {
			return "", utils.Invalid(fmt.Sprintf("Days must be a number between 1 and %d.", maxStatsDays))
		}
		days = n
	}
	since := e.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	report, err := e.analytics.Report(ctx, cmd.ChatID, since)
	if err != nil {
		return "", err
	}
	return report.Format(days), nil
}
