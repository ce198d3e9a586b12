package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"groupguard/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestPublishAuditEncodesEvent(t *testing.T) {
	conn := &recordingConn{}
	publisher := newPublisher(conn, zap.NewNop())

	target := int64(42)
	publisher.PublishAudit(context.Background(), storage.AuditLog{
		ChatID:    -100,
		ActorID:   7,
		Action:    "ban",
		TargetID:  &target,
		Details:   map[string]any{"reason": "spam"},
		CreatedAt: time.Unix(1_700_000_000, 0),
	})

	if len(conn.subjects) != 1 || conn.subjects[0] != "groupguard.audit.-100" {
		t.Fatalf("unexpected subjects %v", conn.subjects)
	}
	var event AuditEvent
	if err := json.Unmarshal(conn.payloads[0], &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := uuid.Parse(event.ID); err != nil {
		t.Fatalf("event id must be a uuid: %q", event.ID)
	}
	if event.Action != "ban" || event.TargetID == nil || *event.TargetID != 42 || event.Details["reason"] != "spam" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestPublishAuditSwallowsErrors(t *testing.T) {
	publisher := newPublisher(&recordingConn{err: errors.New("nats: connection closed")}, zap.NewNop())
	publisher.PublishAudit(context.Background(), storage.AuditLog{ChatID: 1, Action: "kick"})
}
