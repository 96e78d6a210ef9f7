package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"botloop/pkg/event"
)

// Dispatcher fans one polled batch out to handlers and joins on completion.
// It holds no state across batches.
type Dispatcher struct {
	router *Router
	reg    *Registry
	log    *slog.Logger
}

func NewDispatcher(router *Router, reg *Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		router: router,
		reg:    reg,
		log:    log.With("component", "dispatch.dispatcher"),
	}
}

// Dispatch partitions the batch by kind, runs kind groups and per-chat
// message pipelines concurrently, and blocks until every handler invocation
// has settled. Within one chat, messages run strictly in arrival order; no
// other ordering is guaranteed.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []event.Update) {
	if len(batch) == 0 {
		return
	}

	log := d.log.With("batch_id", uuid.NewString())

	groups := make(map[event.Kind][]*event.Update)
	chatOrder := make([]int64, 0)
	byChat := make(map[int64][]*event.Message)

	for i := range batch {
		upd := &batch[i]
		switch upd.Kind {
		case event.KindMessage:
			chatID := upd.Message.ChatID()
			if _, ok := byChat[chatID]; !ok {
				chatOrder = append(chatOrder, chatID)
			}
			byChat[chatID] = append(byChat[chatID], upd.Message)
		case event.KindUnknown:
			log.Debug("Dropping unsupported update", "update_id", upd.ID)
		default:
			groups[upd.Kind] = append(groups[upd.Kind], upd)
		}
	}

	var wg sync.WaitGroup

	for kind, group := range groups {
		fn, ok := d.reg.kindHandler(kind)
		if !ok {
			log.Debug("No kind handler registered, dropping group", "kind", kind.String(), "events", len(group))
			continue
		}

		for _, upd := range group {
			wg.Add(1)
			go func(kind event.Kind, upd *event.Update) {
				defer wg.Done()
				if err := safeCall(func() error { return fn(ctx, upd) }); err != nil {
					log.Error("Kind handler failed", "kind", kind.String(), "update_id", upd.ID, "error", err)
				}
			}(kind, upd)
		}
	}

	for _, chatID := range chatOrder {
		pipeline := byChat[chatID]
		wg.Add(1)
		go func(chatID int64, pipeline []*event.Message) {
			defer wg.Done()
			for _, msg := range pipeline {
				d.router.Dispatch(ctx, msg)
			}
		}(chatID, pipeline)
	}

	wg.Wait()
}
