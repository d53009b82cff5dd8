package store

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// fakeGateway is an in-memory ChallengeGateway and SettingsGateway double
// that counts writes so tests can assert guards skipped the remote call.
type fakeGateway struct {
	mu sync.Mutex

	nextID     uint
	challenges []models.Challenge
	settings   []models.OverlaySettings

	listErr    error
	updateErr  error
	updateCall int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 1}
}

func (f *fakeGateway) seedChallenge(ch models.Challenge) models.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch.ID = f.nextID
	f.nextID++
	f.challenges = append([]models.Challenge{ch}, f.challenges...)
	return ch
}

func (f *fakeGateway) ListChallenges(ctx context.Context, userID uint) ([]models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Challenge
	for _, c := range f.challenges {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeGateway) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch.ID = f.nextID
	f.nextID++
	f.challenges = append([]models.Challenge{*ch}, f.challenges...)
	return nil
}

func (f *fakeGateway) UpdateChallenge(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCall++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.challenges {
		c := &f.challenges[i]
		if c.ID != id || c.UserID != userID {
			continue
		}
		if v, ok := patch["title"]; ok {
			c.Title = v.(string)
		}
		if v, ok := patch["max_value"]; ok {
			c.MaxValue = v.(int)
		}
		if v, ok := patch["current_value"]; ok {
			c.CurrentValue = v.(int)
		}
		if v, ok := patch["is_active"]; ok {
			c.IsActive = v.(bool)
		}
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeGateway) DeleteChallenge(ctx context.Context, userID, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.challenges[:0]
	found := false
	for _, c := range f.challenges {
		if c.ID == id && c.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	f.challenges = kept
	if !found {
		return ErrNotFound
	}
	return nil
}

func (f *fakeGateway) ActivateChallenge(ctx context.Context, userID, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i := range f.challenges {
		c := &f.challenges[i]
		if c.UserID != userID {
			continue
		}
		c.IsActive = c.ID == id
		if c.ID == id {
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (f *fakeGateway) ListSettings(ctx context.Context, userID uint) ([]models.OverlaySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OverlaySettings
	for _, s := range f.settings {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeGateway) FindSettingsByChallenge(ctx context.Context, userID uint, challengeID *uint) (*models.OverlaySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.settings {
		if s.UserID != userID {
			continue
		}
		if challengeID == nil && s.ChallengeID == nil {
			cp := s
			return &cp, nil
		}
		if challengeID != nil && s.ChallengeID != nil && *s.ChallengeID == *challengeID {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeGateway) InsertSettings(ctx context.Context, row *models.OverlaySettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.ID = f.nextID
	f.nextID++
	f.settings = append(f.settings, *row)
	return nil
}

func (f *fakeGateway) UpdateSettings(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.OverlaySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.settings {
		s := &f.settings[i]
		if s.ID != id || s.UserID != userID {
			continue
		}
		if v, ok := patch["challenge_id"]; ok {
			cid := v.(uint)
			s.ChallengeID = &cid
		}
		if v, ok := patch["position_x"]; ok {
			s.PositionX = v.(float64)
		}
		if v, ok := patch["position_y"]; ok {
			s.PositionY = v.(float64)
		}
		if v, ok := patch["width"]; ok {
			s.Width = v.(float64)
		}
		if v, ok := patch["height"]; ok {
			s.Height = v.(float64)
		}
		if v, ok := patch["react_code"]; ok {
			s.ReactCode = v.(string)
		}
		if v, ok := patch["confetti_enabled"]; ok {
			s.ConfettiEnabled = v.(bool)
		}
		if v, ok := patch["sound_enabled"]; ok {
			s.SoundEnabled = v.(bool)
		}
		if v, ok := patch["sound_type"]; ok {
			s.SoundType = v.(models.AssetLinks)
		}
		if v, ok := patch["confetti_type"]; ok {
			s.ConfettiType = v.(models.AssetLinks)
		}
		cp := *s
		return &cp, nil
	}
	return nil, ErrNotFound
}

// fakeFeed dispatches synchronously so tests observe refetches without
// sleeping.
type fakeFeed struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]struct {
		table string
		fn    func(gateway.Event)
	}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{listeners: map[int]struct {
		table string
		fn    func(gateway.Event)
	}{}}
}

func (f *fakeFeed) Subscribe(table string, fn func(gateway.Event)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = struct {
		table string
		fn    func(gateway.Event)
	}{table, fn}
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

func (f *fakeFeed) emit(ev gateway.Event) {
	f.mu.Lock()
	var fns []func(gateway.Event)
	for _, l := range f.listeners {
		if l.table == ev.Table {
			fns = append(fns, l.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeFeed) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// fakeAssets records uploads in memory.
type fakeAssets struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{objects: map[string][]byte{}}
}

func (f *fakeAssets) Upload(ctx context.Context, objectPath string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[objectPath] = buf.Bytes()
	f.mu.Unlock()
	return f.PublicURL(objectPath), nil
}

func (f *fakeAssets) PublicURL(objectPath string) string {
	return "/static/assets/" + objectPath
}

func (f *fakeAssets) Remove(ctx context.Context, objectPaths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range objectPaths {
		delete(f.objects, p)
		f.removed = append(f.removed, p)
	}
	return nil
}
