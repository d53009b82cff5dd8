package store

import (
	"context"
	"errors"
	"testing"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

func newChallengeStore(gw *fakeGateway, feed *fakeFeed) *ChallengeStore {
	return NewChallengeStore(1, gw, feed, nil)
}

func TestAdd_FirstChallengeBecomesActive(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())

	created, err := s.Add(context.Background(), ChallengeInput{Title: "subs", MaxValue: 100})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Add did not assign an id")
	}

	active := s.Active()
	if active == nil || active.ID != created.ID {
		t.Fatalf("Active = %+v, want id %d", active, created.ID)
	}

	// A second challenge must not steal the active slot.
	second, err := s.Add(context.Background(), ChallengeInput{Title: "wins", MaxValue: 10})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Active(); got.ID != created.ID {
		t.Errorf("Active = %d after second Add, want %d", got.ID, created.ID)
	}
	if snap := s.Snapshot(); len(snap) != 2 || snap[0].ID != second.ID {
		t.Errorf("Snapshot = %+v, want newest first", snap)
	}
}

func TestIncrement_StopsAtMax(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	ch := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 100, CurrentValue: 90})
	s.FetchAll(context.Background())

	for i := 0; i < 10; i++ {
		m, err := s.Increment(context.Background(), ch.ID)
		if err != nil {
			t.Fatalf("Increment #%d: %v", i+1, err)
		}
		if !m.Applied {
			t.Fatalf("Increment #%d refused: %q", i+1, m.Notice)
		}
	}

	writes := gw.updateCall
	for i := 11; i <= 20; i++ {
		m, err := s.Increment(context.Background(), ch.ID)
		if err != nil {
			t.Fatalf("Increment #%d: %v", i, err)
		}
		if m.Applied {
			t.Fatalf("Increment #%d applied past maxValue", i)
		}
		if m.Notice != "challenge is already at maximum value" {
			t.Errorf("Increment #%d: Notice = %q", i, m.Notice)
		}
		if m.Challenge.CurrentValue != 100 {
			t.Errorf("Increment #%d: CurrentValue = %d, want 100", i, m.Challenge.CurrentValue)
		}
	}
	if gw.updateCall != writes {
		t.Errorf("refused increments still wrote through (%d -> %d)", writes, gw.updateCall)
	}
}

func TestDecrement_StopsAtZero(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	ch := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 10, CurrentValue: 1})
	s.FetchAll(context.Background())

	m, err := s.Decrement(context.Background(), ch.ID)
	if err != nil || !m.Applied {
		t.Fatalf("Decrement: applied=%v err=%v", m.Applied, err)
	}

	writes := gw.updateCall
	m, err = s.Decrement(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("Decrement at zero: %v", err)
	}
	if m.Applied {
		t.Fatal("Decrement applied below zero")
	}
	if m.Notice != "challenge is already at minimum value" {
		t.Errorf("Notice = %q", m.Notice)
	}
	if gw.updateCall != writes {
		t.Error("refused decrement still wrote through")
	}
}

func TestGuardedMutation_ColdCache(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	ch := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 10, CurrentValue: 3})

	// No FetchAll first: the store must resolve the row itself.
	m, err := s.Increment(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("Increment on cold cache: %v", err)
	}
	if !m.Applied || m.Challenge.CurrentValue != 4 {
		t.Errorf("got applied=%v value=%d, want applied value 4", m.Applied, m.Challenge.CurrentValue)
	}
}

func TestIncrement_UnknownID(t *testing.T) {
	s := newChallengeStore(newFakeGateway(), newFakeFeed())
	if _, err := s.Increment(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReset_ZeroesCounter(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	ch := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 100, CurrentValue: 42})
	s.FetchAll(context.Background())

	got, err := s.Reset(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got.CurrentValue != 0 {
		t.Errorf("CurrentValue = %d, want 0", got.CurrentValue)
	}
}

func TestDelete_PromotesNextActive(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	first := gw.seedChallenge(models.Challenge{UserID: 1, Title: "a", MaxValue: 5, IsActive: true})
	second := gw.seedChallenge(models.Challenge{UserID: 1, Title: "b", MaxValue: 5})
	s.FetchAll(context.Background())

	if got := s.Active(); got == nil || got.ID != first.ID {
		t.Fatalf("Active = %+v, want %d", got, first.ID)
	}

	if err := s.Delete(context.Background(), first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.Active(); got == nil || got.ID != second.ID {
		t.Errorf("Active = %+v after delete, want %d", got, second.ID)
	}

	if err := s.Delete(context.Background(), second.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.Active(); got != nil {
		t.Errorf("Active = %+v after deleting all, want nil", got)
	}
}

func TestActivateExclusively(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	first := gw.seedChallenge(models.Challenge{UserID: 1, Title: "a", MaxValue: 5, IsActive: true})
	second := gw.seedChallenge(models.Challenge{UserID: 1, Title: "b", MaxValue: 5})
	s.FetchAll(context.Background())

	got, err := s.ActivateExclusively(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("ActivateExclusively: %v", err)
	}
	if !got.IsActive {
		t.Error("activated challenge not flagged active")
	}
	if active := s.Active(); active == nil || active.ID != second.ID {
		t.Errorf("Active = %+v, want %d", active, second.ID)
	}
	for _, c := range s.Snapshot() {
		if c.ID == first.ID && c.IsActive {
			t.Error("previous active challenge still flagged active")
		}
	}
}

func TestFetchAll_ErrorKeepsCache(t *testing.T) {
	gw := newFakeGateway()
	s := newChallengeStore(gw, newFakeFeed())
	gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 10})
	s.FetchAll(context.Background())

	gw.listErr = errors.New("gateway down")
	snap := s.FetchAll(context.Background())
	if len(snap) != 1 {
		t.Fatalf("Snapshot lost on fetch failure: %+v", snap)
	}
}

func TestSubscribe_RefetchesOnOwnEvents(t *testing.T) {
	gw := newFakeGateway()
	feed := newFakeFeed()
	s := newChallengeStore(gw, feed)
	cancel := s.Subscribe()
	defer cancel()

	ch := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 10, CurrentValue: 7})
	feed.emit(gateway.Event{Table: gateway.TableChallenges, Action: gateway.ActionUpdate, ID: ch.ID, UserID: 1})

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].CurrentValue != 7 {
		t.Fatalf("Snapshot = %+v, want refetched row", snap)
	}

	// Another user's event must not trigger anything visible here.
	gw.seedChallenge(models.Challenge{UserID: 2, Title: "other", MaxValue: 10})
	feed.emit(gateway.Event{Table: gateway.TableChallenges, Action: gateway.ActionInsert, UserID: 2})
	if snap := s.Snapshot(); len(snap) != 1 {
		t.Errorf("Snapshot = %+v after foreign event", snap)
	}
}

func TestSubscribe_CancelIsIdempotent(t *testing.T) {
	feed := newFakeFeed()
	s := newChallengeStore(newFakeGateway(), feed)

	cancelA := s.Subscribe()
	cancelB := s.Subscribe()
	if feed.listenerCount() != 2 {
		t.Fatalf("listeners = %d, want 2", feed.listenerCount())
	}

	cancelA()
	cancelA()
	if feed.listenerCount() != 1 {
		t.Fatalf("listeners = %d after double cancel, want 1", feed.listenerCount())
	}
	cancelB()
	if feed.listenerCount() != 0 {
		t.Fatalf("listeners = %d, want 0", feed.listenerCount())
	}
}
