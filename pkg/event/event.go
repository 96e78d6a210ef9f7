package event

import (
	"github.com/mymmrac/telego"
)

// Kind partitions updates into the groups the dispatcher fans out over.
type Kind int

const (
	KindUnknown Kind = iota
	KindMessage
	KindInlineQuery
	KindChosenInlineResult
	KindCallbackQuery
	KindChannelPost
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindInlineQuery:
		return "inline_query"
	case KindChosenInlineResult:
		return "chosen_inline_result"
	case KindCallbackQuery:
		return "callback_query"
	case KindChannelPost:
		return "channel_post"
	default:
		return "unknown"
	}
}

// Update is one classified update from a polled batch. Batch slice order is
// arrival order; per-chat ordering is defined over it.
//
// Exactly one of the payload fields matching Kind is set.
type Update struct {
	ID   int
	Kind Kind

	Message            *Message
	InlineQuery        *telego.InlineQuery
	ChosenInlineResult *telego.ChosenInlineResult
	CallbackQuery      *telego.CallbackQuery
	ChannelPost        *telego.Message
}

// Message is a conversational message with its resolved content type.
//
// Constructed once at classification time and immutable afterwards; the
// dispatch pipeline owns it until its handler completes.
type Message struct {
	*telego.Message

	ContentType ContentType
}

// ChatID returns the identity conversational ordering is keyed by.
func (m *Message) ChatID() int64 {
	return m.Chat.ID
}

// ReplyTarget returns the id of the message this one replies to, if any.
func (m *Message) ReplyTarget() (int, bool) {
	if m.ReplyToMessage == nil {
		return 0, false
	}
	return m.ReplyToMessage.MessageID, true
}
