package bot

import (
	"context"
	"time"

	"groupguard/internal/moderation"
	"groupguard/internal/modules/warns"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"
)

type Bot struct {
	tb     *tele.Bot
	engine *moderation.Engine
	logger *zap.Logger
}

// NewTelegram opens the long-polling session. The engine is attached later with
// Attach because it needs the platform client built from this session.
func NewTelegram(token string, pollTimeout time.Duration, logger *zap.Logger) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, c tele.Context) {
			fields := []zap.Field{zap.Error(err)}
			if c != nil && c.Chat() != nil {
				fields = append(fields, zap.Int64("chat_id", c.Chat().ID))
			}
			logger.Error("telegram handler failed", fields...)
		},
	})
}

func New(tb *tele.Bot, engine *moderation.Engine, logger *zap.Logger) *Bot {
	b := &Bot{tb: tb, engine: engine, logger: logger}
	b.register()
	return b
}

func (b *Bot) register() {
	b.tb.Use(middleware.Recover(func(err error, c tele.Context) {
		b.logger.Error("handler panic", zap.Error(err))
	}))
	b.tb.Use(middleware.AutoRespond())

	for _, name := range moderation.Commands() {
		b.tb.Handle("/"+name, b.onCommand(name))
	}
	b.tb.Handle(tele.OnText, b.onMessage)
	b.tb.Handle(tele.OnMedia, b.onMessage)
	b.tb.Handle(&tele.Btn{Unique: warns.ButtonUnique}, b.onUnwarnButton)
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.tb.Start()
	}()
	b.logger.Info("telegram polling started", zap.String("user", b.tb.Me.Username))

	<-ctx.Done()
	b.tb.Stop()
	<-done
	b.logger.Info("telegram polling stopped")
	return nil
}
