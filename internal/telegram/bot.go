package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/SayonaraQ/downloadbot/internal/deliver"
	"github.com/SayonaraQ/downloadbot/internal/model"
	"github.com/SayonaraQ/downloadbot/internal/pipeline"
	"github.com/SayonaraQ/downloadbot/internal/users"
)

const welcomeMessage = "Hi, I'm the Downloader!\n\n" +
	"Send me a link to an Instagram Reels / post / story, TikTok, " +
	"YouTube (including Shorts) or VK video and I'll try to send the media back.\n\n" +
	"I can also find and send music if you message me a name like:\n" +
	"`Artist - Title`\n\n" +
	"I work in group chats too (I need permission to read and send messages)."

// Bot owns the telebot connection and dispatches updates into the pipeline.
type Bot struct {
	tb      *tele.Bot
	adminID int64
	log     *logrus.Logger
}

// NewBot connects to the Telegram Bot API with long polling.
func NewBot(cfg model.TelegramConfig, log *logrus.Logger) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.WithError(err).Error("telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return &Bot{tb: tb, adminID: cfg.AdminID, log: log}, nil
}

// Transport exposes the delivery side of the connection.
func (b *Bot) Transport() deliver.Transport {
	return &Transport{bot: b.tb}
}

// Register wires the command and message handlers.
func (b *Bot) Register(p *pipeline.Pipeline, registry *users.Registry) {
	b.tb.Handle("/start", func(c tele.Context) error {
		registry.Record(c.Chat().ID)
		return c.Send(welcomeMessage, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})

	b.tb.Handle("/users", func(c tele.Context) error {
		if b.adminID != 0 && c.Chat().ID != b.adminID {
			return c.Send("You are not allowed to run this command.")
		}
		count, err := registry.Count()
		if err != nil {
			b.log.WithError(err).Error("failed to count users")
			return c.Send("Failed to count users.")
		}
		return c.Send(fmt.Sprintf("Total users: %d", count))
	})

	b.tb.Handle(tele.OnText, func(c tele.Context) error {
		if err := p.HandleText(context.Background(), c.Chat().ID, c.Text()); err != nil {
			// The pipeline already messaged the requester where it matters.
			b.log.WithField("chat", c.Chat().ID).WithError(err).Error("message handling failed")
		}
		return nil
	})
}

// Start begins long polling; blocks until Stop.
func (b *Bot) Start() {
	b.tb.Start()
}

// Stop terminates long polling.
func (b *Bot) Stop() {
	b.tb.Stop()
}
