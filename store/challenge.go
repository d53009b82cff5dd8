package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// ChallengeInput carries the fields a caller provides when creating a
// challenge. Validation of user input happens at the HTTP boundary.
type ChallengeInput struct {
	Title        string
	MaxValue     int
	CurrentValue int
	EndDate      *time.Time
	IsActive     bool
}

// ChallengePatch is a partial update. Nil fields are left untouched;
// ClearEndDate removes the end date explicitly since a nil EndDate
// pointer means "unchanged".
type ChallengePatch struct {
	Title        *string
	MaxValue     *int
	CurrentValue *int
	EndDate      *time.Time
	ClearEndDate bool
	IsActive     *bool
}

func (p ChallengePatch) toMap() map[string]interface{} {
	patch := map[string]interface{}{}
	if p.Title != nil {
		patch["title"] = *p.Title
	}
	if p.MaxValue != nil {
		patch["max_value"] = *p.MaxValue
	}
	if p.CurrentValue != nil {
		patch["current_value"] = *p.CurrentValue
	}
	if p.EndDate != nil {
		patch["end_date"] = *p.EndDate
	} else if p.ClearEndDate {
		patch["end_date"] = nil
	}
	if p.IsActive != nil {
		patch["is_active"] = *p.IsActive
	}
	return patch
}

// Mutation is the outcome of a guarded value operation. When the guard
// refuses (increment at max, decrement at zero) Applied is false, Notice
// carries the user-facing message, and no remote write happened.
type Mutation struct {
	Challenge *models.Challenge
	Applied   bool
	Notice    string
}

// ChallengeStore caches one user's challenges and the active-challenge
// pointer. Mutations follow a write-through-then-commit discipline: the
// gateway write must succeed before the local cache changes, so a failed
// remote call leaves the cache at its last known-good state.
//
// Activation exclusivity is only guaranteed by ActivateExclusively. Update
// with IsActive set deliberately does not touch sibling rows.
type ChallengeStore struct {
	userID  uint
	gw      ChallengeGateway
	feed    ChangeFeed
	log     *zap.SugaredLogger
	timeout time.Duration

	mu         sync.Mutex
	challenges []models.Challenge
	active     *models.Challenge
}

// NewChallengeStore creates a store for one user.
func NewChallengeStore(userID uint, gw ChallengeGateway, feed ChangeFeed, log *zap.SugaredLogger) *ChallengeStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChallengeStore{
		userID:  userID,
		gw:      gw,
		feed:    feed,
		log:     log,
		timeout: defaultTimeout,
	}
}

// Snapshot returns a copy of the cached collection, newest first.
func (s *ChallengeStore) Snapshot() []models.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Challenge, len(s.challenges))
	copy(out, s.challenges)
	return out
}

// Active returns a copy of the active challenge, or nil when none is set.
func (s *ChallengeStore) Active() *models.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	return &cp
}

// FetchAll refreshes the cache from the gateway. A remote failure is logged
// and the previous cache is returned unchanged; reads never surface hard
// failures to consumers.
func (s *ChallengeStore) FetchAll(ctx context.Context) []models.Challenge {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.gw.ListChallenges(ctx, s.userID)
	if err != nil {
		s.log.Errorw("fetch challenges failed", "user_id", s.userID, "err", err)
		return s.Snapshot()
	}

	s.mu.Lock()
	s.challenges = rows
	s.reconcileActiveLocked()
	s.mu.Unlock()

	return s.Snapshot()
}

// reconcileActiveLocked refreshes the active pointer against the current
// collection: keep the same row (by id) when it still exists, otherwise fall
// back to the first row flagged active, then the first row, then nil.
func (s *ChallengeStore) reconcileActiveLocked() {
	if s.active != nil {
		for i := range s.challenges {
			if s.challenges[i].ID == s.active.ID {
				cp := s.challenges[i]
				s.active = &cp
				return
			}
		}
		s.active = nil
	}
	for i := range s.challenges {
		if s.challenges[i].IsActive {
			cp := s.challenges[i]
			s.active = &cp
			return
		}
	}
	if len(s.challenges) > 0 {
		cp := s.challenges[0]
		s.active = &cp
	}
}

// SetActive assigns the active pointer locally without writing through.
// Passing nil clears it.
func (s *ChallengeStore) SetActive(ch *models.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch == nil {
		s.active = nil
		return
	}
	cp := *ch
	s.active = &cp
}

// Add inserts a challenge for the user and prepends it to the cache. When no
// challenge was active, the new one becomes active. The returned row carries
// the gateway-assigned id, which the settings store needs for linking.
func (s *ChallengeStore) Add(ctx context.Context, in ChallengeInput) (*models.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := models.Challenge{
		UserID:       s.userID,
		Title:        in.Title,
		MaxValue:     in.MaxValue,
		CurrentValue: in.CurrentValue,
		EndDate:      in.EndDate,
		IsActive:     in.IsActive,
	}
	if err := s.gw.InsertChallenge(ctx, &row); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.challenges = append([]models.Challenge{row}, s.challenges...)
	if s.active == nil {
		cp := row
		s.active = &cp
	}
	s.mu.Unlock()

	cp := row
	return &cp, nil
}

// Update applies a partial update through the gateway and merges the result
// into the cache and, when ids match, into the active pointer.
func (s *ChallengeStore) Update(ctx context.Context, id uint, patch ChallengePatch) (*models.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.gw.UpdateChallenge(ctx, s.userID, id, patch.toMap())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			s.challenges[i] = *updated
			break
		}
	}
	if s.active != nil && s.active.ID == id {
		cp := *updated
		s.active = &cp
	}
	s.mu.Unlock()

	cp := *updated
	return &cp, nil
}

// Delete removes a challenge. If it was the active one, the first remaining
// challenge (or nil) takes its place.
func (s *ChallengeStore) Delete(ctx context.Context, id uint) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.gw.DeleteChallenge(ctx, s.userID, id); err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.challenges[:0]
	for _, c := range s.challenges {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.challenges = kept
	if s.active != nil && s.active.ID == id {
		if len(s.challenges) > 0 {
			cp := s.challenges[0]
			s.active = &cp
		} else {
			s.active = nil
		}
	}
	s.mu.Unlock()
	return nil
}

// Increment raises currentValue by one. At maxValue it refuses without a
// remote call and reports a notice instead.
func (s *ChallengeStore) Increment(ctx context.Context, id uint) (Mutation, error) {
	cached, ok := s.resolve(ctx, id)
	if !ok {
		return Mutation{}, ErrNotFound
	}
	if cached.CurrentValue >= cached.MaxValue {
		return Mutation{Challenge: &cached, Notice: "challenge is already at maximum value"}, nil
	}

	next := cached.CurrentValue + 1
	updated, err := s.Update(ctx, id, ChallengePatch{CurrentValue: &next})
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{Challenge: updated, Applied: true}, nil
}

// Decrement lowers currentValue by one. At zero it refuses without a remote
// call and reports a notice instead.
func (s *ChallengeStore) Decrement(ctx context.Context, id uint) (Mutation, error) {
	cached, ok := s.resolve(ctx, id)
	if !ok {
		return Mutation{}, ErrNotFound
	}
	if cached.CurrentValue <= 0 {
		return Mutation{Challenge: &cached, Notice: "challenge is already at minimum value"}, nil
	}

	next := cached.CurrentValue - 1
	updated, err := s.Update(ctx, id, ChallengePatch{CurrentValue: &next})
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{Challenge: updated, Applied: true}, nil
}

// Reset sets currentValue back to zero regardless of its prior value.
func (s *ChallengeStore) Reset(ctx context.Context, id uint) (*models.Challenge, error) {
	zero := 0
	return s.Update(ctx, id, ChallengePatch{CurrentValue: &zero})
}

// ActivateExclusively makes one challenge active and deactivates all the
// user's other challenges in a single gateway transaction, then refreshes the
// cache and points the active pointer at the activated row.
func (s *ChallengeStore) ActivateExclusively(ctx context.Context, id uint) (*models.Challenge, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.gw.ActivateChallenge(tctx, s.userID, id); err != nil {
		return nil, err
	}

	s.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			cp := s.challenges[i]
			s.active = &cp
			out := cp
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Subscribe attaches the store to the change feed: any committed change to
// this user's challenges triggers a full refetch. The returned disposer is
// idempotent, and concurrent subscriptions share the feed's single transport.
func (s *ChallengeStore) Subscribe() func() {
	return s.feed.Subscribe(gateway.TableChallenges, func(ev gateway.Event) {
		if ev.UserID != 0 && ev.UserID != s.userID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.FetchAll(ctx)
	})
}

// resolve reads a challenge from the cache, refetching once on a miss so the
// guarded mutations work on a cold store.
func (s *ChallengeStore) resolve(ctx context.Context, id uint) (models.Challenge, bool) {
	if c, ok := s.cached(id); ok {
		return c, true
	}
	s.FetchAll(ctx)
	return s.cached(id)
}

func (s *ChallengeStore) cached(id uint) (models.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.challenges {
		if c.ID == id {
			return c, true
		}
	}
	return models.Challenge{}, false
}
