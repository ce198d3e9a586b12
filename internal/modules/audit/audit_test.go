package audit

import (
	"context"
	"errors"
	"testing"

	"groupguard/internal/storage"

	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) AddAuditLog(context.Context, storage.AuditLog) error {
	return errors.New("disk full")
}

func (failingStore) ListAuditLogs(context.Context, int64, int) ([]storage.AuditLog, error) {
	return nil, nil
}

func TestLogSwallowsStoreErrors(t *testing.T) {
	logger := NewLogger(failingStore{}, zap.NewNop())
	var notified int
	logger.SetNotifier(func(context.Context, storage.AuditLog) { notified++ })

	logger.Log(context.Background(), 1, 2, ActionBan, 3, map[string]any{"reason": "spam"})
	if notified != 1 {
		t.Fatalf("expected notifier to run once, got %d", notified)
	}
}

func TestQueryNewestFirst(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := NewLogger(store, zap.NewNop())
	for i := 0; i < 12; i++ {
		logger.Log(context.Background(), 5, 1, ActionWarn, 7, map[string]any{"i": i})
	}

	logs, err := logger.Query(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(logs) != DefaultQueryLimit {
		t.Fatalf("expected %d entries, got %d", DefaultQueryLimit, len(logs))
	}
	if logs[0].Details["i"] != float64(11) {
		t.Fatalf("expected newest entry first, got %v", logs[0].Details)
	}
	if logs[0].TargetID == nil || *logs[0].TargetID != 7 {
		t.Fatalf("expected target 7, got %v", logs[0].TargetID)
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 10, -3: 1, 1: 1, 25: 25, 50: 50, 51: 50, 1000: 50}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
