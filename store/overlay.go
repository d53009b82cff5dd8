package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// Asset kinds and slots accepted by UploadAsset and DeleteAsset.
const (
	AssetKindSound    = "sound"
	AssetKindConfetti = "confetti"

	SlotIncrement = "increment"
	SlotDecrement = "decrement"
	SlotReset     = "reset"
)

// ErrInvalidAsset is returned for an unknown kind or slot.
var ErrInvalidAsset = errors.New("store: unknown asset kind or slot")

// Default overlay placement, as percentages of the viewport.
const (
	DefaultPositionX = 10.0
	DefaultPositionY = 10.0
	DefaultWidth     = 30.0
	DefaultHeight    = 20.0
)

// SettingsPatch is a partial update for an overlay settings row. Nil fields
// are left untouched. ID targets a specific row; when nil the currently
// cached row is saved, and when no row is cached at all an insert merging the
// defaults is performed.
type SettingsPatch struct {
	ID              *uint
	ChallengeID     *uint
	PositionX       *float64
	PositionY       *float64
	Width           *float64
	Height          *float64
	ReactCode       *string
	ConfettiEnabled *bool
	SoundEnabled    *bool
	SoundType       *models.AssetLinks
	ConfettiType    *models.AssetLinks
}

func (p SettingsPatch) toMap() map[string]interface{} {
	patch := map[string]interface{}{}
	if p.ChallengeID != nil {
		patch["challenge_id"] = *p.ChallengeID
	}
	if p.PositionX != nil {
		patch["position_x"] = *p.PositionX
	}
	if p.PositionY != nil {
		patch["position_y"] = *p.PositionY
	}
	if p.Width != nil {
		patch["width"] = *p.Width
	}
	if p.Height != nil {
		patch["height"] = *p.Height
	}
	if p.ReactCode != nil {
		patch["react_code"] = *p.ReactCode
	}
	if p.ConfettiEnabled != nil {
		patch["confetti_enabled"] = *p.ConfettiEnabled
	}
	if p.SoundEnabled != nil {
		patch["sound_enabled"] = *p.SoundEnabled
	}
	if p.SoundType != nil {
		patch["sound_type"] = *p.SoundType
	}
	if p.ConfettiType != nil {
		patch["confetti_type"] = *p.ConfettiType
	}
	return patch
}

func (p SettingsPatch) applyTo(row *models.OverlaySettings) {
	if p.ChallengeID != nil {
		id := *p.ChallengeID
		row.ChallengeID = &id
	}
	if p.PositionX != nil {
		row.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		row.PositionY = *p.PositionY
	}
	if p.Width != nil {
		row.Width = *p.Width
	}
	if p.Height != nil {
		row.Height = *p.Height
	}
	if p.ReactCode != nil {
		row.ReactCode = *p.ReactCode
	}
	if p.ConfettiEnabled != nil {
		row.ConfettiEnabled = *p.ConfettiEnabled
	}
	if p.SoundEnabled != nil {
		row.SoundEnabled = *p.SoundEnabled
	}
	if p.SoundType != nil {
		row.SoundType = *p.SoundType
	}
	if p.ConfettiType != nil {
		row.ConfettiType = *p.ConfettiType
	}
}

// OverlaySettingsStore resolves, caches, and persists the one settings row
// the overlay currently displays, with create-on-missing semantics. There is
// no separate error state: on failure the cached row stays at its last good
// value.
type OverlaySettingsStore struct {
	userID     uint
	gw         SettingsGateway
	assets     AssetStorage
	challenges *ChallengeStore
	feed       ChangeFeed
	log        *zap.SugaredLogger
	timeout    time.Duration

	mu       sync.Mutex
	settings *models.OverlaySettings
}

// NewOverlaySettingsStore creates a settings store for one user. The
// challenge store supplies the active challenge during resolution.
func NewOverlaySettingsStore(userID uint, gw SettingsGateway, assets AssetStorage, challenges *ChallengeStore, feed ChangeFeed, log *zap.SugaredLogger) *OverlaySettingsStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OverlaySettingsStore{
		userID:     userID,
		gw:         gw,
		assets:     assets,
		challenges: challenges,
		feed:       feed,
		log:        log,
		timeout:    defaultTimeout,
	}
}

// Current returns a copy of the cached settings row, or nil before the first
// successful resolution.
func (s *OverlaySettingsStore) Current() *models.OverlaySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil
	}
	cp := *s.settings
	return &cp
}

// FetchOne resolves the settings row to display and caches it. Resolution
// order: the given challenge id; else the active challenge's id; else the
// user's default row (null challenge_id); else a freshly created default row
// scoped the same way the caller scoped the lookup.
func (s *OverlaySettingsStore) FetchOne(ctx context.Context, challengeID *uint) (*models.OverlaySettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := challengeID
	if target == nil {
		if active := s.challenges.Active(); active != nil {
			id := active.ID
			target = &id
		}
	}

	if target != nil {
		row, err := s.gw.FindSettingsByChallenge(ctx, s.userID, target)
		if err == nil {
			return s.commit(row), nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.log.Errorw("fetch overlay settings failed", "user_id", s.userID, "err", err)
			return s.Current(), err
		}
	}

	row, err := s.gw.FindSettingsByChallenge(ctx, s.userID, nil)
	if err == nil {
		return s.commit(row), nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.log.Errorw("fetch overlay settings failed", "user_id", s.userID, "err", err)
		return s.Current(), err
	}

	// Nothing stored yet for this scope: create the defaults. The new row is
	// scoped to the explicit challenge id when one was passed, otherwise it
	// becomes the user's global default row.
	return s.ResetToDefaults(ctx, challengeID)
}

// FetchAllForUser returns every settings row for the user without touching
// the cached "currently displayed" row.
func (s *OverlaySettingsStore) FetchAllForUser(ctx context.Context) ([]models.OverlaySettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gw.ListSettings(ctx, s.userID)
}

// Save persists a partial update. With a known row id it patches that row;
// otherwise it inserts a new row merging the defaults, the patch, and the
// owning user. The cache is always replaced with the row the gateway
// returned.
func (s *OverlaySettingsStore) Save(ctx context.Context, patch SettingsPatch) (*models.OverlaySettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var id uint
	if patch.ID != nil {
		id = *patch.ID
	} else if cur := s.Current(); cur != nil {
		id = cur.ID
	}

	if id == 0 {
		row := defaultSettings(s.userID, nil)
		patch.applyTo(&row)
		if err := s.gw.InsertSettings(ctx, &row); err != nil {
			return nil, err
		}
		return s.commit(&row), nil
	}

	row, err := s.gw.UpdateSettings(ctx, s.userID, id, patch.toMap())
	if err != nil {
		return nil, err
	}
	return s.commit(row), nil
}

// UploadAsset stores a sound or animation file under the user's
// deterministic per-slot path, overwriting any previous upload, then patches
// the matching URL field. Returns the public URL.
func (s *OverlaySettingsStore) UploadAsset(ctx context.Context, kind, slot, filename string, r io.Reader) (string, error) {
	if err := validateAsset(kind, slot); err != nil {
		return "", err
	}

	current := s.Current()
	if current == nil {
		var err error
		current, err = s.FetchOne(ctx, nil)
		if err != nil {
			return "", err
		}
	}

	objectPath := s.assetPath(kind, slot, path.Ext(filename))
	uctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	url, err := s.assets.Upload(uctx, objectPath, r)
	if err != nil {
		return "", err
	}

	if _, err := s.saveAssetURL(ctx, current, kind, slot, &url); err != nil {
		return "", err
	}
	return url, nil
}

// DeleteAsset removes the stored object for a slot and clears its URL. Blob
// removal is best-effort: a missing or undeletable object is logged and does
// not block clearing the URL field.
func (s *OverlaySettingsStore) DeleteAsset(ctx context.Context, kind, slot string) error {
	if err := validateAsset(kind, slot); err != nil {
		return err
	}

	current := s.Current()
	if current == nil {
		var err error
		current, err = s.FetchOne(ctx, nil)
		if err != nil {
			return err
		}
	}

	if url := s.links(current, kind).URLFor(slot); url != nil {
		objectPath := s.assetPath(kind, slot, path.Ext(*url))
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := s.assets.Remove(rctx, objectPath); err != nil {
			s.log.Warnw("asset blob removal failed", "path", objectPath, "err", err)
		}
		cancel()
	}

	_, err := s.saveAssetURL(ctx, current, kind, slot, nil)
	return err
}

// ResetToDefaults writes the fixed default configuration for the given scope,
// updating the existing row when one exists and inserting otherwise.
func (s *OverlaySettingsStore) ResetToDefaults(ctx context.Context, challengeID *uint) (*models.OverlaySettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.gw.FindSettingsByChallenge(ctx, s.userID, challengeID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		row, err := s.gw.UpdateSettings(ctx, s.userID, existing.ID, defaultsPatch())
		if err != nil {
			return nil, err
		}
		return s.commit(row), nil
	}

	row := defaultSettings(s.userID, challengeID)
	if err := s.gw.InsertSettings(ctx, &row); err != nil {
		return nil, err
	}
	return s.commit(&row), nil
}

// Subscribe attaches the store to the change feed: any committed settings
// change for this user re-resolves the displayed row. The disposer is
// idempotent.
func (s *OverlaySettingsStore) Subscribe() func() {
	return s.feed.Subscribe(gateway.TableOverlaySettings, func(ev gateway.Event) {
		if ev.UserID != 0 && ev.UserID != s.userID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.FetchOne(ctx, nil); err != nil {
			s.log.Debugw("settings re-resolve after change event failed", "err", err)
		}
	})
}

func (s *OverlaySettingsStore) saveAssetURL(ctx context.Context, current *models.OverlaySettings, kind, slot string, url *string) (*models.OverlaySettings, error) {
	links := s.links(current, kind).WithURL(slot, url)
	patch := SettingsPatch{ID: &current.ID}
	if kind == AssetKindSound {
		patch.SoundType = &links
	} else {
		patch.ConfettiType = &links
	}
	return s.Save(ctx, patch)
}

func (s *OverlaySettingsStore) links(row *models.OverlaySettings, kind string) models.AssetLinks {
	if kind == AssetKindSound {
		return row.SoundType
	}
	return row.ConfettiType
}

func (s *OverlaySettingsStore) assetPath(kind, slot, ext string) string {
	return fmt.Sprintf("%d/%s_%s%s", s.userID, slot, kind, ext)
}

func (s *OverlaySettingsStore) commit(row *models.OverlaySettings) *models.OverlaySettings {
	s.mu.Lock()
	cp := *row
	s.settings = &cp
	s.mu.Unlock()
	out := *row
	return &out
}

func validateAsset(kind, slot string) error {
	switch kind {
	case AssetKindSound, AssetKindConfetti:
	default:
		return ErrInvalidAsset
	}
	switch slot {
	case SlotIncrement, SlotDecrement, SlotReset:
	default:
		return ErrInvalidAsset
	}
	return nil
}

func defaultSettings(userID uint, challengeID *uint) models.OverlaySettings {
	row := models.OverlaySettings{
		UserID:          userID,
		PositionX:       DefaultPositionX,
		PositionY:       DefaultPositionY,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		ConfettiEnabled: true,
		SoundEnabled:    true,
	}
	if challengeID != nil {
		id := *challengeID
		row.ChallengeID = &id
	}
	return row
}

func defaultsPatch() map[string]interface{} {
	return map[string]interface{}{
		"position_x":       DefaultPositionX,
		"position_y":       DefaultPositionY,
		"width":            DefaultWidth,
		"height":           DefaultHeight,
		"react_code":       "",
		"confetti_enabled": true,
		"sound_enabled":    true,
		"sound_type":       models.AssetLinks{},
		"confetti_type":    models.AssetLinks{},
	}
}
