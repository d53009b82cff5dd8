// Package store holds the state layer between the HTTP surface and the
// gateway: per-user in-memory caches of challenges and overlay settings,
// write-through mutation operations, and change-feed reconciliation.
package store

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// ErrNotFound mirrors the gateway's not-found error so callers only need one.
var ErrNotFound = gateway.ErrNotFound

// ErrAssetTooLarge mirrors the storage size limit error.
var ErrAssetTooLarge = gateway.ErrAssetTooLarge

// defaultTimeout bounds every remote call a store makes; a hung backend call
// must never hang a consumer indefinitely.
const defaultTimeout = 10 * time.Second

// ChallengeGateway is the slice of the remote gateway the challenge store needs.
type ChallengeGateway interface {
	ListChallenges(ctx context.Context, userID uint) ([]models.Challenge, error)
	InsertChallenge(ctx context.Context, ch *models.Challenge) error
	UpdateChallenge(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.Challenge, error)
	DeleteChallenge(ctx context.Context, userID, id uint) error
	ActivateChallenge(ctx context.Context, userID, id uint) error
}

// SettingsGateway is the slice of the remote gateway the settings store needs.
type SettingsGateway interface {
	ListSettings(ctx context.Context, userID uint) ([]models.OverlaySettings, error)
	FindSettingsByChallenge(ctx context.Context, userID uint, challengeID *uint) (*models.OverlaySettings, error)
	InsertSettings(ctx context.Context, row *models.OverlaySettings) error
	UpdateSettings(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.OverlaySettings, error)
}

// AssetStorage stores uploaded overlay assets and serves them by public URL.
type AssetStorage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader) (string, error)
	PublicURL(objectPath string) string
	Remove(ctx context.Context, objectPaths ...string) error
}

// ChangeFeed delivers committed-row change events. Implementations share one
// transport across all subscribers; the returned cancel is idempotent.
type ChangeFeed interface {
	Subscribe(table string, fn func(gateway.Event)) func()
}

// Deps bundles the collaborators the stores are built from. Everything is an
// interface so tests can substitute doubles.
type Deps struct {
	Challenges ChallengeGateway
	Settings   SettingsGateway
	Assets     AssetStorage
	Feed       ChangeFeed
	Log        *zap.SugaredLogger
}

// Manager hands out per-user store instances. Stores are created lazily, kept
// for the process lifetime, and subscribed to the change feed on creation so
// their caches follow remote writes.
type Manager struct {
	deps Deps

	mu         sync.Mutex
	challenges map[uint]*ChallengeStore
	overlays   map[uint]*OverlaySettingsStore
	cancels    []func()
	closed     bool
}

// NewManager creates a Manager over the given dependencies.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:       deps,
		challenges: map[uint]*ChallengeStore{},
		overlays:   map[uint]*OverlaySettingsStore{},
	}
}

// Challenges returns the challenge store for a user, creating it on first use.
func (m *Manager) Challenges(userID uint) *ChallengeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.challenges[userID]; ok {
		return s
	}
	s := NewChallengeStore(userID, m.deps.Challenges, m.deps.Feed, m.deps.Log)
	m.challenges[userID] = s
	if !m.closed {
		m.cancels = append(m.cancels, s.Subscribe())
	}
	return s
}

// Overlay returns the overlay settings store for a user, creating it on first use.
func (m *Manager) Overlay(userID uint) *OverlaySettingsStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.overlays[userID]; ok {
		return s
	}
	ch := m.challenges[userID]
	if ch == nil {
		ch = NewChallengeStore(userID, m.deps.Challenges, m.deps.Feed, m.deps.Log)
		m.challenges[userID] = ch
		if !m.closed {
			m.cancels = append(m.cancels, ch.Subscribe())
		}
	}
	s := NewOverlaySettingsStore(userID, m.deps.Settings, m.deps.Assets, ch, m.deps.Feed, m.deps.Log)
	m.overlays[userID] = s
	if !m.closed {
		m.cancels = append(m.cancels, s.Subscribe())
	}
	return s
}

// Close tears down every feed subscription the manager opened.
func (m *Manager) Close() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.closed = true
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
