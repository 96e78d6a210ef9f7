package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"botloop/pkg/cache"
	"botloop/pkg/event"
)

const (
	// DefaultReplyCacheSize bounds pending reply subscriptions.
	DefaultReplyCacheSize = 10000
	// DefaultNextStepCacheSize bounds pending next-step handlers.
	DefaultNextStepCacheSize = 1000
)

// Router resolves which single handler, if any, runs for one conversational
// message. Resolution precedence is reply subscription, then next-step
// handler, then the static handler list; the first hit wins and at most one
// handler runs per message.
//
// Checking the reply subscription before the next-step handler mirrors the
// reference behavior; when both are pending for the same message, the reply
// callback is the one consumed.
type Router struct {
	reg       *Registry
	replies   *cache.LRU[int, MessageHandler]
	nextSteps *cache.LRU[int64, MessageHandler]
	log       *slog.Logger
}

func NewRouter(reg *Registry, replyCacheSize, nextStepCacheSize int, log *slog.Logger) *Router {
	if replyCacheSize <= 0 {
		replyCacheSize = DefaultReplyCacheSize
	}
	if nextStepCacheSize <= 0 {
		nextStepCacheSize = DefaultNextStepCacheSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		reg:       reg,
		replies:   cache.New[int, MessageHandler](replyCacheSize),
		nextSteps: cache.New[int64, MessageHandler](nextStepCacheSize),
		log:       log.With("component", "dispatch.router"),
	}
}

// RegisterForReply subscribes a one-shot callback to the first message that
// replies to messageID. Under capacity pressure the least recently used
// subscription is silently dropped; its reply, if it ever arrives, falls
// through to static handler matching.
func (r *Router) RegisterForReply(messageID int, fn MessageHandler) {
	if fn == nil {
		return
	}
	r.replies.Put(messageID, fn)
}

// RegisterNextChatHandler subscribes a one-shot callback to the next message
// from chatID, whatever its content. Same eviction trade-off as replies.
func (r *Router) RegisterNextChatHandler(chatID int64, fn MessageHandler) {
	if fn == nil {
		return
	}
	r.nextSteps.Put(chatID, fn)
}

// resolve returns the handler for msg and the resolution source for logging.
func (r *Router) resolve(msg *event.Message) (MessageHandler, string, bool) {
	if replyTo, ok := msg.ReplyTarget(); ok {
		if fn, ok := r.replies.Take(replyTo); ok {
			return fn, "reply_subscription", true
		}
	}

	if fn, ok := r.nextSteps.Take(msg.ChatID()); ok {
		return fn, "next_step", true
	}

	for _, rt := range r.reg.routes {
		if rt.matches(msg) {
			return rt.fn, "static", true
		}
	}

	return nil, "", false
}

// Dispatch runs prehandlers, resolves the handler, and invokes it. Handler
// failures are logged and contained here; a message with no handler is
// silently dropped.
func (r *Router) Dispatch(ctx context.Context, msg *event.Message) {
	for _, pre := range r.reg.prehandlers {
		err := safeCall(func() error {
			pre(msg)
			return nil
		})
		if err != nil {
			r.log.Error("Prehandler failed",
				"chat_id", msg.ChatID(), "message_id", msg.MessageID, "error", err)
		}
	}

	fn, source, ok := r.resolve(msg)
	if !ok {
		r.log.Debug("No handler for message",
			"chat_id", msg.ChatID(), "message_id", msg.MessageID, "content_type", string(msg.ContentType))
		return
	}

	err := safeCall(func() error { return fn(ctx, msg) })
	if err != nil {
		r.log.Error("Message handler failed",
			"chat_id", msg.ChatID(), "message_id", msg.MessageID, "source", source, "error", err)
	}
}

// safeCall invokes fn, converting a panic into an error so one handler cannot
// take down sibling pipelines.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn()
}
