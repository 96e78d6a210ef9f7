package event

import (
	"github.com/mymmrac/telego"
)

// ContentType tags what a conversational message carries. The set is closed;
// anything else classifies as ContentUnsupported and is dropped downstream.
type ContentType string

const (
	ContentUnsupported     ContentType = ""
	ContentText            ContentType = "text"
	ContentAudio           ContentType = "audio"
	ContentVoice           ContentType = "voice"
	ContentDocument        ContentType = "document"
	ContentPhoto           ContentType = "photo"
	ContentSticker         ContentType = "sticker"
	ContentVideo           ContentType = "video"
	ContentLocation        ContentType = "location"
	ContentContact         ContentType = "contact"
	ContentNewChatMembers  ContentType = "new_chat_members"
	ContentLeftChatMember  ContentType = "left_chat_member"
	ContentNewChatTitle    ContentType = "new_chat_title"
	ContentNewChatPhoto    ContentType = "new_chat_photo"
	ContentDeleteChatPhoto ContentType = "delete_chat_photo"
	ContentGroupCreated    ContentType = "group_chat_created"
)

// contentProbes is the fixed priority order for content classification. When a
// payload carries markers for more than one kind, the last matching entry wins.
var contentProbes = []struct {
	contentType ContentType
	present     func(*telego.Message) bool
}{
	{ContentText, func(m *telego.Message) bool { return m.Text != "" }},
	{ContentAudio, func(m *telego.Message) bool { return m.Audio != nil }},
	{ContentVoice, func(m *telego.Message) bool { return m.Voice != nil }},
	{ContentDocument, func(m *telego.Message) bool { return m.Document != nil }},
	{ContentPhoto, func(m *telego.Message) bool { return len(m.Photo) > 0 }},
	{ContentSticker, func(m *telego.Message) bool { return m.Sticker != nil }},
	{ContentVideo, func(m *telego.Message) bool { return m.Video != nil }},
	{ContentLocation, func(m *telego.Message) bool { return m.Location != nil }},
	{ContentContact, func(m *telego.Message) bool { return m.Contact != nil }},
	{ContentNewChatMembers, func(m *telego.Message) bool { return len(m.NewChatMembers) > 0 }},
	{ContentLeftChatMember, func(m *telego.Message) bool { return m.LeftChatMember != nil }},
	{ContentNewChatTitle, func(m *telego.Message) bool { return m.NewChatTitle != "" }},
	{ContentNewChatPhoto, func(m *telego.Message) bool { return len(m.NewChatPhoto) > 0 }},
	{ContentDeleteChatPhoto, func(m *telego.Message) bool { return m.DeleteChatPhoto }},
	{ContentGroupCreated, func(m *telego.Message) bool { return m.GroupChatCreated }},
}

// ClassifyContent resolves the content type of a raw message.
func ClassifyContent(m *telego.Message) ContentType {
	resolved := ContentUnsupported
	for _, probe := range contentProbes {
		if probe.present(m) {
			resolved = probe.contentType
		}
	}
	return resolved
}

// Classify turns one raw update into a typed event. It never fails: updates of
// no recognized kind, and messages with no recognized content, come back as
// KindUnknown for the dispatcher to log and drop.
func Classify(raw telego.Update) Update {
	update := Update{ID: raw.UpdateID, Kind: KindUnknown}

	switch {
	case raw.InlineQuery != nil:
		update.Kind = KindInlineQuery
		update.InlineQuery = raw.InlineQuery
	case raw.ChosenInlineResult != nil:
		update.Kind = KindChosenInlineResult
		update.ChosenInlineResult = raw.ChosenInlineResult
	case raw.CallbackQuery != nil:
		update.Kind = KindCallbackQuery
		update.CallbackQuery = raw.CallbackQuery
	case raw.ChannelPost != nil:
		update.Kind = KindChannelPost
		update.ChannelPost = raw.ChannelPost
	case raw.Message != nil:
		contentType := ClassifyContent(raw.Message)
		if contentType == ContentUnsupported {
			break
		}
		update.Kind = KindMessage
		update.Message = &Message{Message: raw.Message, ContentType: contentType}
	}

	return update
}

// ClassifyBatch classifies one polled batch, preserving arrival order.
func ClassifyBatch(raw []telego.Update) []Update {
	batch := make([]Update, 0, len(raw))
	for _, u := range raw {
		batch = append(batch, Classify(u))
	}
	return batch
}
