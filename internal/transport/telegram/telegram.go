// Package telegram is a send-only Telegram channel for reminder delivery.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "remindd/pkg/logx"

	"remindd/internal/transport"
)

type Config struct {
	Token     string
	ParseMode string // telebot parse mode; empty means plain text
}

type Sender struct {
	bot       *tele.Bot
	parseMode string
	log       logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	// No poller: this bot only sends.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{bot: b, parseMode: cfg.ParseMode, log: log}, nil
}

// Send delivers msg to the chat id encoded in address.
// A malformed chat id is a permanent channel error.
func (s *Sender) Send(ctx context.Context, address string, msg transport.Message) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: telegram chat id %q", transport.ErrChannelInvalid, address)
	}

	text := msg.Body
	if msg.Title != "" {
		if text == "" {
			text = msg.Title
		} else {
			text = msg.Title + "\n" + text
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{ParseMode: s.parseMode})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		s.log.Debug("telegram sent", logx.Int64("chat_id", chatID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
