package moderation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"groupguard/internal/modules/audit"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const logTimeLayout = "2006-01-02 15:04:05"

// restrictionLabels orders the restriction detail keys for display.
var restrictionLabels = []struct {
	key   string
	label string
}{
	{"can_send_messages", "messages"},
	{"can_send_media_messages", "media"},
	{"can_send_polls", "polls"},
	{"can_send_other_messages", "other messages"},
	{"can_add_web_page_previews", "web previews"},
	{"can_change_info", "changing info"},
	{"can_invite_users", "inviting users"},
	{"can_pin_messages", "pinning messages"},
}

func (e *Engine) formatBans(ctx context.Context, bans []storage.BanRecord) string {
	if len(bans) == 0 {
		return "There are no banned users in this chat."
	}
	now := e.clock.Now()
	var b strings.Builder
	b.WriteString("Banned users:\n")
	for _, ban := range bans {
		t := e.targetByID(ctx, ban.UserID)
		fmt.Fprintf(&b, "\n- %s (%d)", t.display(), ban.UserID)
		switch {
		case ban.Permanent():
			b.WriteString(" - Permanently banned")
		case ban.Expired(now):
			b.WriteString(" - Ban expired")
		default:
			fmt.Fprintf(&b, " - Banned for %s more", utils.ReadableDuration(ban.ExpiresAt.Sub(now)))
		}
		reason := ban.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		fmt.Fprintf(&b, "\n  Reason: %s", reason)
	}
	return b.String()
}

func (e *Engine) formatLogs(ctx context.Context, entries []storage.AuditLog) string {
	if len(entries) == 0 {
		return "No action logs found for this chat."
	}
	title := cases.Title(language.English)
	var b strings.Builder
	b.WriteString("Recent actions:")
	for _, entry := range entries {
		action := title.String(strings.ReplaceAll(entry.Action, "_", " "))
		fmt.Fprintf(&b, "\n\n%s: %s performed %s", entry.CreatedAt.UTC().Format(logTimeLayout), e.actorName(ctx, entry.ActorID), action)
		if entry.TargetID != nil {
			fmt.Fprintf(&b, " on %s", e.targetByID(ctx, *entry.TargetID).display())
		}
		if details := describeDetails(entry.Action, entry.Details); details != "" {
			b.WriteString("\n" + details)
		}
	}
	return b.String()
}

func (e *Engine) actorName(ctx context.Context, actorID int64) string {
	if actorID == e.client.BotID() {
		return "the bot"
	}
	t := e.targetByID(ctx, actorID)
	if t.Name == "" {
		return fmt.Sprintf("Admin %d", actorID)
	}
	return t.Name
}

func describeDetails(action string, details map[string]any) string {
	switch action {
	case audit.ActionBan:
		reason := stringDetail(details, "reason")
		if reason == "" {
			reason = "No reason provided"
		}
		if seconds := secondsDetail(details, "duration"); seconds > 0 {
			return fmt.Sprintf("for %s\nReason: %s", utils.ReadableSeconds(seconds), reason)
		}
		return "permanently\nReason: " + reason
	case audit.ActionRestrict:
		text := "from " + describeRestrictions(details["restrictions"])
		if seconds := secondsDetail(details, "duration"); seconds > 0 {
			text += " for " + utils.ReadableSeconds(seconds)
		} else {
			text += " permanently"
		}
		if reason := stringDetail(details, "reason"); reason != "" {
			text += "\nReason: " + reason
		}
		return text
	case audit.ActionKick, audit.ActionWarn:
		text := ""
		if reason := stringDetail(details, "reason"); reason != "" {
			text = "Reason: " + reason
		}
		if count := secondsDetail(details, "warn_count"); count > 0 {
			text = strings.TrimSpace(fmt.Sprintf("%s (warning %d)", text, count))
		}
		return text
	case audit.ActionFlood:
		return fmt.Sprintf("%d messages in %s", secondsDetail(details, "limit"), utils.ReadableSeconds(secondsDetail(details, "time")))
	case audit.ActionUnwarn:
		return fmt.Sprintf("%d warnings left", secondsDetail(details, "warn_count"))
	case audit.ActionBlacklistTriggered:
		return "Words: " + strings.Join(listDetail(details, "words"), ", ")
	case audit.ActionBlacklistUpdate:
		if added := listDetail(details, "added"); len(added) > 0 {
			return "Added: " + strings.Join(added, ", ")
		}
		return "Removed: " + strings.Join(listDetail(details, "removed"), ", ")
	case audit.ActionSettingsChange:
		return describeSettings(details)
	case audit.ActionRulesSet:
		return "Rules: " + stringDetail(details, "rules")
	}
	return ""
}

func describeRestrictions(raw any) string {
	values, _ := raw.(map[string]any)
	flags := make(map[string]bool, len(values))
	for key, value := range values {
		allowed, _ := value.(bool)
		flags[key] = allowed
	}
	if typed, ok := raw.(map[string]bool); ok {
		flags = typed
	}

	var denied []string
	for _, item := range restrictionLabels {
		if !flags[item.key] {
			denied = append(denied, item.label)
		}
	}
	switch len(denied) {
	case 0:
		return "nothing"
	case len(restrictionLabels):
		return "all actions"
	}
	return strings.Join(denied, ", ")
}

func describeSettings(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for key := range details {
		if key == "setting" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := details[key]
		if value == nil {
			value = "never"
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	return fmt.Sprintf("%s: %s", stringDetail(details, "setting"), strings.Join(parts, ", "))
}

func stringDetail(details map[string]any, key string) string {
	value, _ := details[key].(string)
	return value
}

// secondsDetail reads an integer detail, which comes back as float64 after a JSON round trip.
func secondsDetail(details map[string]any, key string) int64 {
	switch v := details[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case time.Duration:
		return int64(v / time.Second)
	}
	return 0
}

func listDetail(details map[string]any, key string) []string {
	switch v := details[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
