package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"groupguard/internal/storage"
)

type Store interface {
	ListAuditLogsSince(ctx context.Context, chatID int64, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Since    time.Time
	Total    int
	ByAction map[string]int
}

func (s *Service) Report(ctx context.Context, chatID int64, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogsSince(ctx, chatID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{Since: since, ByAction: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByAction[log.Action]++
	}
	return report, nil
}

// Format renders the report with the busiest action first.
func (r Report) Format(days int) string {
	if r.Total == 0 {
		return fmt.Sprintf("No moderation actions in the last %d days.", days)
	}
	actions := make([]string, 0, len(r.ByAction))
	for action := range r.ByAction {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool {
		if r.ByAction[actions[i]] != r.ByAction[actions[j]] {
			return r.ByAction[actions[i]] > r.ByAction[actions[j]]
		}
		return actions[i] < actions[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Moderation stats for the last %d days: %d actions", days, r.Total)
	for _, action := range actions {
		fmt.Fprintf(&b, "\n- %s: %d", action, r.ByAction[action])
	}
	return b.String()
}
