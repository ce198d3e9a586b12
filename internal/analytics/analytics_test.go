package analytics

import (
	"context"
	"testing"
	"time"

	"groupguard/internal/storage"
)

func TestReportCountsByAction(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	entries := []storage.AuditLog{
		{ChatID: -1, ActorID: 1, Action: "ban", CreatedAt: now},
		{ChatID: -1, ActorID: 1, Action: "warn", CreatedAt: now},
		{ChatID: -1, ActorID: 1, Action: "warn", CreatedAt: now},
		{ChatID: -1, ActorID: 1, Action: "kick", CreatedAt: now.Add(-30 * 24 * time.Hour)},
		{ChatID: -2, ActorID: 1, Action: "ban", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	report, err := New(store).Report(ctx, -1, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 || report.ByAction["warn"] != 2 || report.ByAction["kick"] != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := "Moderation stats for the last 7 days: 3 actions\n- warn: 2\n- ban: 1"
	if got := report.Format(7); got != want {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestEmptyReport(t *testing.T) {
	if got := (Report{}).Format(3); got != "No moderation actions in the last 3 days." {
		t.Fatalf("unexpected format %q", got)
	}
}
