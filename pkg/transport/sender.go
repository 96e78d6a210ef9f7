package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"botloop/pkg/event"
)

// Sender issues one-shot outbound API calls. It carries no state beyond the
// bot client; each method builds one request and returns the parsed result.
type Sender struct {
	bot *telego.Bot
	log *slog.Logger
}

func NewSender(bot *telego.Bot, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		bot: bot,
		log: log.With("component", "transport.sender"),
	}
}

// SendOption customizes an outgoing text message.
type SendOption func(*telego.SendMessageParams)

// WithReplyTo marks the message as a reply to messageID.
func WithReplyTo(messageID int) SendOption {
	return func(p *telego.SendMessageParams) {
		p.ReplyParameters = &telego.ReplyParameters{MessageID: messageID}
	}
}

// WithParseMode sets the text parse mode (telego.ModeHTML etc.).
func WithParseMode(mode string) SendOption {
	return func(p *telego.SendMessageParams) {
		p.ParseMode = mode
	}
}

// WithReplyMarkup attaches a keyboard or inline markup.
func WithReplyMarkup(markup telego.ReplyMarkup) SendOption {
	return func(p *telego.SendMessageParams) {
		p.ReplyMarkup = markup
	}
}

// WithoutLinkPreview disables web page previews for links in the text.
func WithoutLinkPreview() SendOption {
	return func(p *telego.SendMessageParams) {
		p.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
}

// SendMessage sends text to a chat.
func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string, opts ...SendOption) (*telego.Message, error) {
	params := tu.Message(tu.ID(chatID), text)
	for _, opt := range opts {
		opt(params)
	}

	sent, err := s.bot.SendMessage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return sent, nil
}

// ReplyTo sends text as a reply to msg in its chat.
func (s *Sender) ReplyTo(ctx context.Context, msg *event.Message, text string, opts ...SendOption) (*telego.Message, error) {
	opts = append(opts, WithReplyTo(msg.MessageID))
	return s.SendMessage(ctx, msg.ChatID(), text, opts...)
}

// SendTyping shows the typing chat action in a chat.
func (s *Sender) SendTyping(ctx context.Context, chatID int64) error {
	if err := s.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a callback query, optionally with
// notification text.
func (s *Sender) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	err := s.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// AnswerInlineQuery responds to an inline query with prepared results.
func (s *Sender) AnswerInlineQuery(ctx context.Context, queryID string, results []telego.InlineQueryResult, personal bool) error {
	err := s.bot.AnswerInlineQuery(ctx, &telego.AnswerInlineQueryParams{
		InlineQueryID: queryID,
		Results:       results,
		IsPersonal:    personal,
	})
	if err != nil {
		return fmt.Errorf("answer inline query: %w", err)
	}
	return nil
}
