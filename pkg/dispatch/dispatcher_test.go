package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"

	"botloop/pkg/event"
)

func messageUpdate(id int, chatID int64, text string) event.Update {
	return event.Update{
		ID:   id,
		Kind: event.KindMessage,
		Message: &event.Message{
			Message:     &telego.Message{MessageID: id, Text: text, Chat: telego.Chat{ID: chatID}},
			ContentType: event.ContentText,
		},
	}
}

func newTestDispatcher(t *testing.T, reg *Registry) *Dispatcher {
	t.Helper()
	router := NewRouter(reg, 16, 16, nil)
	return NewDispatcher(router, reg, nil)
}

type callRecorder struct {
	mu    sync.Mutex
	calls []int // message ids in handler start order
}

func (r *callRecorder) handler() MessageHandler {
	return func(_ context.Context, msg *event.Message) error {
		r.mu.Lock()
		r.calls = append(r.calls, msg.MessageID)
		r.mu.Unlock()
		return nil
	}
}

func (r *callRecorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

// subsequence extracts the order of the given ids within calls.
func subsequence(calls []int, ids map[int]bool) []int {
	var sub []int
	for _, id := range calls {
		if ids[id] {
			sub = append(sub, id)
		}
	}
	return sub
}

func TestPerChatOrderPreserved(t *testing.T) {
	reg := NewRegistry()
	rec := &callRecorder{}
	require.NoError(t, reg.RegisterMessageHandler(rec.handler(), WithPredicate(func(*event.Message) bool { return true })))
	d := newTestDispatcher(t, reg)

	// Ten messages, chat identities 1,2,2,3,1,2,3,1,1,3 in arrival order.
	chats := []int64{1, 2, 2, 3, 1, 2, 3, 1, 1, 3}
	batch := make([]event.Update, 0, len(chats))
	for i, chatID := range chats {
		batch = append(batch, messageUpdate(i, chatID, "msg"))
	}

	d.Dispatch(context.Background(), batch)

	calls := rec.snapshot()
	require.Len(t, calls, len(chats))

	require.Equal(t, []int{0, 4, 7, 8}, subsequence(calls, map[int]bool{0: true, 4: true, 7: true, 8: true}))
	require.Equal(t, []int{1, 2, 5}, subsequence(calls, map[int]bool{1: true, 2: true, 5: true}))
	require.Equal(t, []int{3, 6, 9}, subsequence(calls, map[int]bool{3: true, 6: true, 9: true}))
}

func TestSlowChatDoesNotBlockOtherChats(t *testing.T) {
	reg := NewRegistry()

	release := make(chan struct{})
	fastDone := make(chan struct{})

	err := reg.RegisterMessageHandler(func(_ context.Context, msg *event.Message) error {
		if msg.ChatID() == 1 {
			<-release
			return nil
		}
		close(fastDone)
		return nil
	}, WithPredicate(func(*event.Message) bool { return true }))
	require.NoError(t, err)

	d := newTestDispatcher(t, reg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Dispatch(context.Background(), []event.Update{
			messageUpdate(1, 1, "slow"),
			messageUpdate(2, 2, "fast"),
		})
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("chat 2 was blocked behind chat 1")
	}

	select {
	case <-done:
		t.Fatal("dispatch returned before the slow handler settled")
	default:
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete after handlers settled")
	}
}

func TestKindHandlersFanOutConcurrently(t *testing.T) {
	reg := NewRegistry()

	var mu sync.Mutex
	var ids []string
	err := reg.SetKindHandler(event.KindInlineQuery, func(_ context.Context, upd *event.Update) error {
		mu.Lock()
		ids = append(ids, upd.InlineQuery.ID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	d := newTestDispatcher(t, reg)
	d.Dispatch(context.Background(), []event.Update{
		{ID: 1, Kind: event.KindInlineQuery, InlineQuery: &telego.InlineQuery{ID: "a"}},
		{ID: 2, Kind: event.KindInlineQuery, InlineQuery: &telego.InlineQuery{ID: "b"}},
	})

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestUnregisteredKindGroupIsDropped(t *testing.T) {
	reg := NewRegistry()
	d := newTestDispatcher(t, reg)

	// No callback-query handler registered; dispatch must still complete.
	d.Dispatch(context.Background(), []event.Update{
		{ID: 1, Kind: event.KindCallbackQuery, CallbackQuery: &telego.CallbackQuery{ID: "c"}},
		{ID: 2, Kind: event.KindUnknown},
	})
}

func TestKindHandlerFailureDoesNotBlockSiblings(t *testing.T) {
	reg := NewRegistry()

	err := reg.SetKindHandler(event.KindCallbackQuery, func(context.Context, *event.Update) error {
		panic("callback handler down")
	})
	require.NoError(t, err)

	rec := &callRecorder{}
	require.NoError(t, reg.RegisterMessageHandler(rec.handler(), WithPredicate(func(*event.Message) bool { return true })))

	d := newTestDispatcher(t, reg)
	d.Dispatch(context.Background(), []event.Update{
		{ID: 1, Kind: event.KindCallbackQuery, CallbackQuery: &telego.CallbackQuery{ID: "c"}},
		messageUpdate(2, 7, "still here"),
	})

	require.Equal(t, []int{2}, rec.snapshot())
}

func TestEmptyBatchIsNoOp(t *testing.T) {
	reg := NewRegistry()
	d := newTestDispatcher(t, reg)
	d.Dispatch(context.Background(), nil)
}
