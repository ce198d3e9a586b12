// Package messaging publishes moderation audit events to NATS so that other
// services (dashboards, log shippers) can follow what the bot does.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"groupguard/internal/storage"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectAudit is suffixed with the chat ID: groupguard.audit.<chat_id>.
const SubjectAudit = "groupguard.audit"

type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "groupguard",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

type conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	conn   conn
	nc     *nats.Conn
	logger *zap.Logger
}

// AuditEvent is the JSON payload published for every audit entry.
type AuditEvent struct {
	ID        string         `json:"id"`
	ChatID    int64          `json:"chat_id"`
	ActorID   int64          `json:"actor_id"`
	Action    string         `json:"action"`
	TargetID  *int64         `json:"target_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()))
	return &Publisher{conn: nc, nc: nc, logger: logger}, nil
}

func newPublisher(c conn, logger *zap.Logger) *Publisher {
	return &Publisher{conn: c, logger: logger}
}

func subjectFor(chatID int64) string {
	return SubjectAudit + "." + strconv.FormatInt(chatID, 10)
}

// PublishAudit matches the audit.Logger notifier signature. Failures are logged only.
func (p *Publisher) PublishAudit(_ context.Context, entry storage.AuditLog) {
	event := AuditEvent{
		ID:        uuid.NewString(),
		ChatID:    entry.ChatID,
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		TargetID:  entry.TargetID,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("audit event encode failed", zap.Error(err))
		return
	}
	if err := p.conn.Publish(subjectFor(entry.ChatID), data); err != nil {
		p.logger.Warn("audit event publish failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", zap.Error(err))
	}
}
