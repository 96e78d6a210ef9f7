package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"

	"botloop/pkg/dispatch"
	"botloop/pkg/event"
)

const (
	// DefaultPollTimeout is the server-side long-poll wait.
	DefaultPollTimeout = 20 * time.Second
	// DefaultRetryIncrement is added to the retry delay per consecutive failure.
	DefaultRetryIncrement = 3 * time.Second
	// DefaultMaxRetryDelay caps the retry delay.
	DefaultMaxRetryDelay = 20 * time.Second

	// skipBacklogOffset asks the server for only the newest pending update.
	skipBacklogOffset = -1
)

// Source is the transport contract the engine polls against.
type Source interface {
	Poll(ctx context.Context, offset int, wait time.Duration) ([]telego.Update, error)
}

// Options tune the poll loop.
type Options struct {
	PollTimeout    time.Duration
	RetryIncrement time.Duration
	MaxRetryDelay  time.Duration

	// SkipBacklog discards updates accumulated before the engine started
	// instead of replaying them.
	SkipBacklog bool

	ReplyCacheSize    int
	NextStepCacheSize int
}

func (o *Options) applyDefaults() {
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.RetryIncrement <= 0 {
		o.RetryIncrement = DefaultRetryIncrement
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = DefaultMaxRetryDelay
	}
}

// Engine owns the update cursor and drives poll → dispatch → advance.
//
// The cursor marks the highest update id whose batch finished processing; it
// advances only after every handler invocation in the batch has settled, so a
// crash mid-batch redelivers the whole batch (at-least-once delivery).
type Engine struct {
	src        Source
	opts       Options
	log        *slog.Logger
	registry   *dispatch.Registry
	router     *dispatch.Router
	dispatcher *dispatch.Dispatcher

	cursor  atomic.Int64
	stopped atomic.Bool

	mu           sync.RWMutex
	startedAt    time.Time
	lastPollOKAt time.Time
	lastPollErr  string

	// sleep is swapped out by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(src Source, opts Options, log *slog.Logger) *Engine {
	opts.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	registry := dispatch.NewRegistry()
	router := dispatch.NewRouter(registry, opts.ReplyCacheSize, opts.NextStepCacheSize, log)

	e := &Engine{
		src:        src,
		opts:       opts,
		log:        log.With("component", "engine"),
		registry:   registry,
		router:     router,
		dispatcher: dispatch.NewDispatcher(router, registry, log),
		sleep:      sleepCtx,
	}
	e.cursor.Store(-1)
	return e
}

// RegisterMessageHandler appends a static conversational handler.
func (e *Engine) RegisterMessageHandler(fn dispatch.MessageHandler, opts ...dispatch.MessageOption) error {
	return e.registry.RegisterMessageHandler(fn, opts...)
}

// RegisterPrehandler appends a side-effect observer for every message.
func (e *Engine) RegisterPrehandler(fn dispatch.Prehandler) {
	e.registry.RegisterPrehandler(fn)
}

// SetKindHandler installs the handler for a non-conversational update kind.
func (e *Engine) SetKindHandler(kind event.Kind, fn dispatch.UpdateHandler) error {
	return e.registry.SetKindHandler(kind, fn)
}

// RegisterForReply subscribes a one-shot callback to the reply to messageID.
func (e *Engine) RegisterForReply(messageID int, fn dispatch.MessageHandler) {
	e.router.RegisterForReply(messageID, fn)
}

// RegisterNextChatHandler subscribes a one-shot callback to the next message
// from chatID.
func (e *Engine) RegisterNextChatHandler(chatID int64, fn dispatch.MessageHandler) {
	e.router.RegisterNextChatHandler(chatID, fn)
}

// Cursor returns the highest fully-processed update id, -1 before any batch.
func (e *Engine) Cursor() int {
	return int(e.cursor.Load())
}

// Stop asks the loop to exit at its next iteration boundary. In-flight batch
// processing finishes; handlers are not cancelled.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Run drives the poll loop until Stop or context cancellation. Transport
// failures are absorbed with linear backoff and never returned.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.startedAt = time.Now().UTC()
	e.mu.Unlock()

	if e.opts.SkipBacklog {
		e.skipBacklog(ctx)
	}

	e.log.Info("Poll loop started", "cursor", e.Cursor(), "poll_timeout", e.opts.PollTimeout)

	retryDelay := time.Duration(0)
	for {
		if e.stopped.Load() || ctx.Err() != nil {
			e.log.Info("Poll loop stopped", "cursor", e.Cursor())
			return nil
		}

		updates, err := e.src.Poll(ctx, e.Cursor()+1, e.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			e.notePollError(err)
			e.log.Warn("Poll failed, delaying retry", "delay", retryDelay, "error", err)
			if !e.sleep(ctx, retryDelay) {
				continue
			}
			retryDelay = min(retryDelay+e.opts.RetryIncrement, e.opts.MaxRetryDelay)
			continue
		}

		e.notePollOK()
		retryDelay = 0

		if len(updates) == 0 {
			continue
		}

		batch := event.ClassifyBatch(updates)
		e.dispatcher.Dispatch(ctx, batch)
		e.advanceCursor(updates)
	}
}

// advanceCursor moves the watermark to the highest update id in the batch.
// Any syntactically valid update advances it; redelivering a kind the engine
// does not recognize would not help.
func (e *Engine) advanceCursor(updates []telego.Update) {
	cursor := e.cursor.Load()
	for _, u := range updates {
		if int64(u.UpdateID) > cursor {
			cursor = int64(u.UpdateID)
		}
	}
	e.cursor.Store(cursor)
}

// skipBacklog fast-forwards the cursor past everything already pending.
func (e *Engine) skipBacklog(ctx context.Context) {
	updates, err := e.src.Poll(ctx, skipBacklogOffset, 0)
	if err != nil {
		e.log.Warn("Backlog probe failed, resuming from oldest pending update", "error", err)
		return
	}
	if len(updates) == 0 {
		return
	}

	e.advanceCursor(updates)
	e.log.Info("Skipped backlog", "cursor", e.Cursor())
}

func (e *Engine) notePollOK() {
	e.mu.Lock()
	e.lastPollOKAt = time.Now().UTC()
	e.lastPollErr = ""
	e.mu.Unlock()
}

func (e *Engine) notePollError(err error) {
	e.mu.Lock()
	e.lastPollErr = err.Error()
	e.mu.Unlock()
}

// sleepCtx waits for d, returning false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
