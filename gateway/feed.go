package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Table names carried on change events.
const (
	TableChallenges      = "challenges"
	TableOverlaySettings = "overlay_settings"
)

// Event actions.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Event describes a committed row change. Filtering by user or row is the
// subscriber's job; the feed only routes by table.
type Event struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     uint   `json:"id"`
	UserID uint   `json:"user_id"`
}

type feedListener struct {
	table string
	fn    func(Event)
}

// Feed is the change-notification stream behind the stores. It keeps a single
// shared transport (a Redis pub/sub channel when Redis is configured, an
// in-process hub otherwise) and fans events out to any number of listeners,
// so duplicate subscriptions never open extra channels.
type Feed struct {
	rdb     *redis.Client
	channel string
	log     *zap.SugaredLogger

	mu        sync.Mutex
	nextID    int
	listeners map[int]feedListener
	closed    bool
	stop      context.CancelFunc
}

// NewFeed creates a Feed. rdb may be nil, in which case events are delivered
// in-process only (single-instance deployments).
func NewFeed(rdb *redis.Client, channel string, log *zap.SugaredLogger) *Feed {
	f := &Feed{
		rdb:       rdb,
		channel:   channel,
		log:       log,
		listeners: map[int]feedListener{},
	}
	if rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		f.stop = cancel
		go f.receive(ctx)
	}
	return f
}

// Publish delivers an event to all subscribers. With Redis configured the
// event travels through the pub/sub channel so every instance sees it; if the
// publish fails the event is dispatched locally so this instance still
// reconciles.
func (f *Feed) Publish(ctx context.Context, ev Event) {
	if f.rdb != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			return
		}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := f.rdb.Publish(pctx, f.channel, b).Err(); err == nil {
			return
		} else if f.log != nil {
			f.log.Warnf("feed publish via redis failed, dispatching locally: %v", err)
		}
	}
	f.dispatch(ev)
}

// Subscribe registers fn for events on the given table and returns an
// idempotent cancel function. fn runs on its own goroutine per event and must
// tolerate being called concurrently.
func (f *Feed) Subscribe(table string, fn func(Event)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = feedListener{table: table, fn: fn}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Close tears down the Redis subscription. Listeners registered afterwards
// receive nothing.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	if f.stop != nil {
		f.stop()
	}
}

func (f *Feed) dispatch(ev Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	targets := make([]func(Event), 0, len(f.listeners))
	for _, l := range f.listeners {
		if l.table == ev.Table {
			targets = append(targets, l.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		go fn(ev)
	}
}

func (f *Feed) receive(ctx context.Context) {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if f.log != nil {
					f.log.Warnf("feed received malformed event: %v", err)
				}
				continue
			}
			f.dispatch(ev)
		}
	}
}
