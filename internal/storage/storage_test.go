package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpdateChatSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetChatSettings(ctx, -100)
	if err != nil {
		t.Fatalf("get chat settings: %v", err)
	}
	if got.Flood != nil || got.FloodEnabled != nil || got.Version != 0 {
		t.Fatalf("expected empty overrides, got %+v", got)
	}

	_, err = store.UpdateChatSettings(ctx, -100, func(s *ChatSettings) error {
		enabled := true
		s.FloodEnabled = &enabled
		s.Flood = &FloodSettings{Limit: 5, Window: 10 * time.Second, Action: "mute", Duration: 300 * time.Second}
		return nil
	})
	if err != nil {
		t.Fatalf("insert chat settings: %v", err)
	}

	_, err = store.UpdateChatSettings(ctx, -100, func(s *ChatSettings) error {
		limit := 4
		s.WarnLimit = &limit
		return nil
	})
	if err != nil {
		t.Fatalf("update chat settings: %v", err)
	}

	got, err = store.GetChatSettings(ctx, -100)
	if err != nil {
		t.Fatalf("get chat settings: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if got.Flood == nil || got.Flood.Limit != 5 || got.Flood.Window != 10*time.Second || got.Flood.Duration != 300*time.Second {
		t.Fatalf("flood override lost: %+v", got.Flood)
	}
	if !got.FloodEnabledOr(false) {
		t.Fatalf("expected flood enabled")
	}

	warn := got.ResolveWarn(WarnSettings{Limit: 3, Expiry: time.Hour, Punishment: "ban"})
	if warn.Limit != 4 || warn.Expiry != time.Hour || warn.Punishment != "ban" {
		t.Fatalf("unexpected resolved warn settings %+v", warn)
	}
}

func TestUpdateChatSettingsMutateErrorLeavesState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("invalid")

	if _, err := store.UpdateChatSettings(ctx, 1, func(s *ChatSettings) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	got, err := store.GetChatSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get chat settings: %v", err)
	}
	if got.Version != 0 {
		t.Fatalf("expected no row, got version %d", got.Version)
	}
}

func TestUpdateWarningsConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateWarnings(ctx, 1, 2, func(current []Warning) ([]Warning, bool, error) {
				return append(current, Warning{Reason: "spam", IssuedBy: 9, IssuedAt: time.Now()}), true, nil
			})
			if err != nil {
				t.Errorf("update warnings: %v", err)
			}
		}()
	}
	wg.Wait()

	warnings, err := store.GetWarnings(ctx, 1, 2)
	if err != nil {
		t.Fatalf("get warnings: %v", err)
	}
	if len(warnings) != 5 {
		t.Fatalf("expected 5 warnings, got %d", len(warnings))
	}
}

func TestPruneExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)
	warnings := []Warning{
		{Reason: "a", ExpiresAt: &past},
		{Reason: "b", ExpiresAt: &future},
		{Reason: "c"},
	}
	active, pruned := PruneExpired(warnings, now)
	if !pruned || len(active) != 2 || active[0].Reason != "b" || active[1].Reason != "c" {
		t.Fatalf("unexpected prune result %+v %v", active, pruned)
	}
}

func TestBanLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := store.PutBan(ctx, BanRecord{ChatID: 1, UserID: 2, BannedBy: 3, Reason: "spam", ExpiresAt: &expires}); err != nil {
		t.Fatalf("put ban: %v", err)
	}
	record, ok, err := store.GetBan(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("get ban: %v %v", ok, err)
	}
	if record.Permanent() || !record.ExpiresAt.Equal(expires) || record.Reason != "spam" {
		t.Fatalf("unexpected record %+v", record)
	}

	removed, err := store.DeleteBan(ctx, 1, 2)
	if err != nil || !removed {
		t.Fatalf("delete ban: %v %v", removed, err)
	}
	removed, err = store.DeleteBan(ctx, 1, 2)
	if err != nil || removed {
		t.Fatalf("second delete should be a no-op: %v %v", removed, err)
	}
}

func TestAuditLogOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		err := store.AddAuditLog(ctx, AuditLog{
			ChatID:    1,
			ActorID:   10,
			Action:    "warn",
			Details:   map[string]any{"n": i},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, 1, 3)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].Details["n"] != float64(4) || logs[2].Details["n"] != float64(2) {
		t.Fatalf("expected newest first, got %+v", logs)
	}
}

func TestBlacklistWords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added, err := store.AddBlacklistWords(ctx, 1, []string{"spam", "scam", "spam"})
	if err != nil {
		t.Fatalf("add words: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected 2 new words, got %v", added)
	}
	removed, err := store.RemoveBlacklistWords(ctx, 1, []string{"scam", "missing"})
	if err != nil {
		t.Fatalf("remove words: %v", err)
	}
	if len(removed) != 1 || removed[0] != "scam" {
		t.Fatalf("unexpected removed %v", removed)
	}
	words, err := store.ListBlacklist(ctx, 1)
	if err != nil {
		t.Fatalf("list words: %v", err)
	}
	if len(words) != 1 || words[0] != "spam" {
		t.Fatalf("unexpected words %v", words)
	}
}

func TestKnownUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RememberUser(ctx, KnownUser{UserID: 42, Username: "Alice", FirstName: "Alice"}); err != nil {
		t.Fatalf("remember user: %v", err)
	}
	user, ok, err := store.LookupUsername(ctx, "@alice")
	if err != nil || !ok || user.UserID != 42 {
		t.Fatalf("lookup username: %+v %v %v", user, ok, err)
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{dialect: dialects[DriverPostgres]}
	got := s.q("SELECT a FROM t WHERE b = ? AND c = ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
}
