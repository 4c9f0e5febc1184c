// Package telegram адаптер Bot API: отправка сообщений и исключение
// участников из группы с ограничением частоты и таймаутом на вызов.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/membership-bot/internal/config"
)

// API подмножество *tgbotapi.BotAPI, которым пользуется клиент.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client исходящие вызовы Bot API.
type Client struct {
	api     API
	groupID int64
	limiter *rate.Limiter
	timeout time.Duration
}

// NewBot авторизуется в Bot API по токену.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	const op = "telegram.NewBot"
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bot, nil
}

// NewClient создаёт клиента для группы cfg.GroupID.
func NewClient(api API, cfg config.Telegram) *Client {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 25
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		api:     api,
		groupID: cfg.GroupID,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}
}

// SendMessage отправляет текст в чат. markdown включает разметку MarkdownV2.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error {
	const op = "telegram.SendMessage"
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if err := c.call(ctx, func() error {
		_, err := c.api.Send(msg)
		return err
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Kick исключает пользователя из группы: бан и сразу разбан,
// чтобы после оплаты он мог вернуться по ссылке.
func (c *Client) Kick(ctx context.Context, userID int64) error {
	const op = "telegram.Kick"
	member := tgbotapi.ChatMemberConfig{ChatID: c.groupID, UserID: userID}

	if err := c.call(ctx, func() error {
		_, err := c.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member})
		return err
	}); err != nil {
		return fmt.Errorf("%s: ban: %w", op, err)
	}
	if err := c.call(ctx, func() error {
		_, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true})
		return err
	}); err != nil {
		return fmt.Errorf("%s: unban: %w", op, err)
	}
	return nil
}

// call ждёт лимитер и выполняет fn не дольше c.timeout.
// Bot API не принимает контекст, поэтому fn работает в отдельной горутине.
func (c *Client) call(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Escape экранирует текст для MarkdownV2.
func Escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}
