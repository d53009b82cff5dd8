package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
	"github.com/farzanshibu/challenge-synergy-hub/store"
)

// EventsController streams challenge and overlay changes to the browser
// source over server-sent events.
type EventsController struct {
	stores *store.Manager
	feed   store.ChangeFeed
}

// NewEventsController creates an EventsController.
func NewEventsController(stores *store.Manager, feed store.ChangeFeed) *EventsController {
	return &EventsController{stores: stores, feed: feed}
}

type snapshotPayload struct {
	Challenges []models.Challenge      `json:"challenges"`
	ActiveID   *uint                   `json:"active_id"`
	Settings   *models.OverlaySettings `json:"settings"`
}

type transitionPayload struct {
	Challenge  models.Challenge `json:"challenge"`
	Transition string           `json:"transition"`
	Milestone  bool             `json:"milestone"`
	Effects    store.Effects    `json:"effects"`
}

// Stream pushes an initial snapshot, then a fresh snapshot on every change
// event for this user, with transition classifications for counters that
// moved. Each connection carries its own baseline, so two overlays for the
// same user classify independently.
func (e *EventsController) Stream(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	ctx.Writer.Header().Set("Content-Type", "text/event-stream")
	ctx.Writer.Header().Set("Cache-Control", "no-cache")
	ctx.Writer.Header().Set("Connection", "keep-alive")
	ctx.Writer.Header().Set("X-Accel-Buffering", "no")

	signals := make(chan struct{}, 1)
	notify := func(ev gateway.Event) {
		if ev.UserID != 0 && ev.UserID != userID {
			return
		}
		select {
		case signals <- struct{}{}:
		default:
		}
	}
	cancelChallenges := e.feed.Subscribe(gateway.TableChallenges, notify)
	defer cancelChallenges()
	cancelSettings := e.feed.Subscribe(gateway.TableOverlaySettings, notify)
	defer cancelSettings()

	tracker := store.NewTracker()
	e.push(ctx, userID, tracker)

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Request.Context().Done():
			return
		case <-signals:
			e.push(ctx, userID, tracker)
		case <-heartbeat.C:
			ctx.SSEvent("ping", time.Now().Unix())
			ctx.Writer.Flush()
		}
	}
}

// push emits transition events for counters that moved since the last push,
// then the full snapshot. The first push only seeds the baseline.
func (e *EventsController) push(ctx *gin.Context, userID uint, tracker *store.Tracker) {
	challenges := e.stores.Challenges(userID).FetchAll(ctx.Request.Context())
	settings, _ := e.stores.Overlay(userID).FetchOne(ctx.Request.Context(), nil)

	seen := map[uint]bool{}
	for _, ch := range challenges {
		seen[ch.ID] = true
		tr := tracker.Observe(ch.ID, ch.CurrentValue)
		if tr == store.TransitionNone {
			continue
		}
		ctx.SSEvent("transition", transitionPayload{
			Challenge:  ch,
			Transition: tr.String(),
			Milestone:  tr == store.TransitionIncrement && store.IsMilestone(ch.CurrentValue, ch.MaxValue),
			Effects:    store.DecideEffects(tr, ch, settings),
		})
	}
	for id := range tracker.Baselines() {
		if !seen[id] {
			tracker.Forget(id)
		}
	}

	var activeID *uint
	if active := e.stores.Challenges(userID).Active(); active != nil {
		id := active.ID
		activeID = &id
	}
	ctx.SSEvent("snapshot", snapshotPayload{
		Challenges: challenges,
		ActiveID:   activeID,
		Settings:   settings,
	})
	ctx.Writer.Flush()
}
