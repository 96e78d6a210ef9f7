package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"
)

// extraWait pads the HTTP deadline past the server-side long-poll wait.
const extraWait = 5 * time.Second

// Telegram polls the Telegram Bot API for updates over getUpdates.
type Telegram struct {
	bot *telego.Bot
	log *slog.Logger
}

// NewTelegram constructs a poll source for the given bot token. Proxy, when
// set, must be a URL understood by net/http.
func NewTelegram(token, proxy string, log *slog.Logger) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is required")
	}

	var opts []telego.BotOption
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return FromBot(bot, log), nil
}

// FromBot wraps an already-constructed bot client.
func FromBot(bot *telego.Bot, log *slog.Logger) *Telegram {
	if log == nil {
		log = slog.Default()
	}

	return &Telegram{
		bot: bot,
		log: log.With("component", "transport.telegram"),
	}
}

// Bot exposes the underlying client for outbound calls.
func (t *Telegram) Bot() *telego.Bot {
	return t.bot
}

// Poll performs one getUpdates call, asking the server to hold the request
// for up to wait. Updates come back ordered by increasing update id.
func (t *Telegram) Poll(ctx context.Context, offset int, wait time.Duration) ([]telego.Update, error) {
	params := &telego.GetUpdatesParams{
		Offset:  offset,
		Timeout: int(wait / time.Second),
	}

	pollCtx, cancel := context.WithTimeout(ctx, wait+extraWait)
	defer cancel()

	updates, err := t.bot.GetUpdates(pollCtx, params)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	return updates, nil
}
