package blacklist

import (
	"context"
	"errors"
	"testing"

	"groupguard/internal/modules/audit"
	"groupguard/internal/platform/platformtest"
	"groupguard/internal/storage"
	"groupguard/internal/utils"

	"go.uber.org/zap"
)

func TestMatchWholeWordCaseInsensitive(t *testing.T) {
	words := []string{"spam"}
	cases := map[string]bool{
		"this is spam":      true,
		"SPAM!":             true,
		"Spam, eggs":        true,
		"what a spammer":    false,
		"antispam":          false,
		"spam_bot":          false,
		"no bad words here": false,
	}
	for text, want := range cases {
		got := len(Match(text, words)) > 0
		if got != want {
			t.Fatalf("Match(%q) = %v, want %v", text, got, want)
		}
	}

	if got := Match("мусорный spam текст", words); len(got) != 1 {
		t.Fatalf("expected match between cyrillic words, got %v", got)
	}
	if got := Match("Купить СПАМ сейчас", []string{"спам"}); len(got) != 1 {
		t.Fatalf("expected cyrillic match, got %v", got)
	}
	if got := Match("спаммер", []string{"спам"}); len(got) != 0 {
		t.Fatalf("expected no partial cyrillic match, got %v", got)
	}
}

func newModule(t *testing.T, global []string) (*Module, *platformtest.Client, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client := platformtest.New(999, 1)
	module := New(store, client, audit.NewLogger(store, zap.NewNop()), global, true, zap.NewNop())
	return module, client, store
}

func TestHandleMessageDeletesAndAudits(t *testing.T) {
	module, client, store := newModule(t, nil)
	ctx := context.Background()

	if _, err := module.Add(ctx, -1, 1, []string{"SPAM"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hit, err := module.HandleMessage(ctx, Message{ChatID: -1, UserID: 2, UserName: "Mallory", MessageID: 77, Text: "Buy SPAM now"})
	if err != nil || !hit {
		t.Fatalf("expected hit: %v %v", hit, err)
	}
	if len(client.Deleted) != 1 || client.Deleted[0] != 77 {
		t.Fatalf("expected message 77 deleted, got %v", client.Deleted)
	}
	if got := client.LastMessage().Text; got != "Message from Mallory deleted due to blacklisted word." {
		t.Fatalf("unexpected notification %q", got)
	}

	hit, err = module.HandleMessage(ctx, Message{ChatID: -1, UserID: 2, MessageID: 78, Text: "I am a spammer"})
	if err != nil || hit {
		t.Fatalf("partial word must not match: %v %v", hit, err)
	}

	logs, _ := store.ListAuditLogs(ctx, -1, 10)
	if len(logs) != 2 || logs[0].Action != audit.ActionBlacklistTriggered {
		t.Fatalf("unexpected audit entries %+v", logs)
	}
}

func TestDeleteFailureIsNotSurfaced(t *testing.T) {
	module, client, _ := newModule(t, []string{"scam"})
	client.Fail("delete", errors.New("message can't be deleted"))

	hit, err := module.HandleMessage(context.Background(), Message{ChatID: -1, UserID: 2, MessageID: 5, Text: "scam"})
	if err != nil || !hit {
		t.Fatalf("delete failure must stay in logs: %v %v", hit, err)
	}
	if len(client.Messages) != 0 {
		t.Fatalf("no notification expected when the message stays, got %+v", client.Messages)
	}
}

func TestCommandSurface(t *testing.T) {
	module, _, _ := newModule(t, []string{"global"})
	ctx := context.Background()

	reply, err := module.Command(ctx, -1, 1, []string{"list"})
	if err != nil || reply != "Blacklisted words:\n- global" {
		t.Fatalf("unexpected list %q %v", reply, err)
	}

	if _, err := module.Command(ctx, -1, 1, []string{"add", "Foo", "bar"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	reply, err = module.Command(ctx, -1, 1, []string{"remove", "missing"})
	if err != nil || reply != "None of these words were found in the blacklist." {
		t.Fatalf("unexpected remove reply %q %v", reply, err)
	}
	reply, err = module.Command(ctx, -1, 1, []string{"list"})
	if err != nil || reply != "Blacklisted words:\n- bar\n- foo\n- global" {
		t.Fatalf("unexpected list %q %v", reply, err)
	}

	var verr *utils.ValidationError
	if _, err := module.Command(ctx, -1, 1, []string{"purge"}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmptyBlacklistIsNoop(t *testing.T) {
	module, client, _ := newModule(t, nil)
	hit, err := module.HandleMessage(context.Background(), Message{ChatID: -1, UserID: 2, MessageID: 1, Text: "anything at all"})
	if err != nil || hit {
		t.Fatalf("expected no-op: %v %v", hit, err)
	}
	reply, _ := module.List(context.Background(), -1)
	if reply != "There are no blacklisted words in this chat." {
		t.Fatalf("unexpected list reply %q", reply)
	}
	if len(client.Deleted) != 0 {
		t.Fatalf("nothing should be deleted")
	}
}
