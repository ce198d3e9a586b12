package blacklist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"groupguard/internal/metrics"
	"groupguard/internal/modules/audit"
	"groupguard/internal/modules/punish"
	"groupguard/internal/platform"
	"groupguard/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

type Store interface {
	AddBlacklistWords(ctx context.Context, chatID int64, words []string) ([]string, error)
	RemoveBlacklistWords(ctx context.Context, chatID int64, words []string) ([]string, error)
	ListBlacklist(ctx context.Context, chatID int64) ([]string, error)
}

type Message struct {
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
	Text      string
}

type Module struct {
	store   Store
	client  platform.Client
	audit   *audit.Logger
	global  []string
	enabled bool
	logger  *zap.Logger
}

func New(store Store, client platform.Client, auditLogger *audit.Logger, global []string, enabled bool, logger *zap.Logger) *Module {
	return &Module{
		store:   store,
		client:  client,
		audit:   auditLogger,
		global:  normalizeWords(global),
		enabled: enabled,
		logger:  logger,
	}
}

func (m *Module) Enabled() bool {
	return m.enabled
}

// HandleMessage deletes a message containing a blacklisted word and reports whether it did.
func (m *Module) HandleMessage(ctx context.Context, msg Message) (bool, error) {
	if !m.enabled || strings.TrimSpace(msg.Text) == "" {
		return false, nil
	}
	words, err := m.words(ctx, msg.ChatID)
	if err != nil {
		return false, err
	}
	triggered := Match(msg.Text, words)
	if len(triggered) == 0 {
		return false, nil
	}
	metrics.BlacklistHits.Inc()

	deleted := true
	if err := m.client.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		deleted = false
		m.logger.Warn("blacklist delete failed", zap.Int64("chat_id", msg.ChatID), zap.Int("message_id", msg.MessageID), zap.Error(err))
	}
	if deleted {
		text := fmt.Sprintf("Message from %s deleted due to blacklisted word.", punish.DisplayName(msg.UserName, msg.UserID))
		if err := m.client.SendMessage(ctx, msg.ChatID, text); err != nil {
			m.logger.Warn("blacklist notification failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		}
	}
	m.audit.Log(ctx, msg.ChatID, m.client.BotID(), audit.ActionBlacklistTriggered, msg.UserID, map[string]any{
		"words":   triggered,
		"deleted": deleted,
	})
	return true, nil
}

// Command dispatches "blacklist add|remove|list <words...>".
func (m *Module) Command(ctx context.Context, chatID, adminID int64, args []string) (string, error) {
	if len(args) == 0 {
		return "", utils.Invalid("Usage: /blacklist add|remove|list <words>")
	}
	switch strings.ToLower(args[0]) {
	case "add":
		return m.Add(ctx, chatID, adminID, args[1:])
	case "remove", "rm", "del":
		return m.Remove(ctx, chatID, adminID, args[1:])
	case "list":
		return m.List(ctx, chatID)
	default:
		return "", utils.Invalid(fmt.Sprintf("Unknown subcommand %q. Use add, remove or list.", args[0]))
	}
}

func (m *Module) Add(ctx context.Context, chatID, adminID int64, words []string) (string, error) {
	words = normalizeWords(words)
	if len(words) == 0 {
		return "", utils.Invalid("Please specify words to add to the blacklist.")
	}
	added, err := m.store.AddBlacklistWords(ctx, chatID, words)
	if err != nil {
		return "", err
	}
	if len(added) == 0 {
		return "All of these words are already blacklisted.", nil
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionBlacklistUpdate, 0, map[string]any{"added": added})
	return "Added to blacklist: " + strings.Join(added, ", "), nil
}

func (m *Module) Remove(ctx context.Context, chatID, adminID int64, words []string) (string, error) {
	words = normalizeWords(words)
	if len(words) == 0 {
		return "", utils.Invalid("Please specify words to remove from the blacklist.")
	}
	removed, err := m.store.RemoveBlacklistWords(ctx, chatID, words)
	if err != nil {
		return "", err
	}
	if len(removed) == 0 {
		return "None of these words were found in the blacklist.", nil
	}
	m.audit.Log(ctx, chatID, adminID, audit.ActionBlacklistUpdate, 0, map[string]any{"removed": removed})
	return "Removed from blacklist: " + strings.Join(removed, ", "), nil
}

func (m *Module) List(ctx context.Context, chatID int64) (string, error) {
	words, err := m.words(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "There are no blacklisted words in this chat.", nil
	}
	return "Blacklisted words:\n- " + strings.Join(words, "\n- "), nil
}

// words returns the sorted union of the global and chat lists.
func (m *Module) words(ctx context.Context, chatID int64) ([]string, error) {
	local, err := m.store.ListBlacklist(ctx, chatID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(m.global)+len(local))
	for _, word := range m.global {
		set[word] = struct{}{}
	}
	for _, word := range local {
		set[word] = struct{}{}
	}
	result := make([]string, 0, len(set))
	for word := range set {
		result = append(result, word)
	}
	sort.Strings(result)
	return result, nil
}

// Match returns the words that occur in text as whole words, ignoring case.
func Match(text string, words []string) []string {
	folded := fold(text)
	var found []string
	for _, word := range words {
		if word == "" {
			continue
		}
		if containsWord(folded, fold(word)) {
			found = append(found, word)
		}
	}
	return found
}

func containsWord(text, word string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !isWordRune(r)
}

func boundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func fold(value string) string {
	return cases.Fold().String(value)
}

func normalizeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	var result []string
	for _, word := range words {
		word = strings.TrimSpace(cases.Fold().String(word))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		result = append(result, word)
	}
	return result
}
