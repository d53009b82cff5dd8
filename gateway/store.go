package gateway

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("gateway: row not found")

// Store is the system of record for challenges and overlay settings. Every
// committed write publishes a change event on the feed, which is what drives
// cache reconciliation in the stores and the overlay event stream.
type Store struct {
	db   *gorm.DB
	feed *Feed
}

// NewStore wraps a gorm DB and a change feed.
func NewStore(db *gorm.DB, feed *Feed) *Store {
	return &Store{db: db, feed: feed}
}

// ListChallenges returns all challenges owned by the user, newest first.
func (s *Store) ListChallenges(ctx context.Context, userID uint) ([]models.Challenge, error) {
	var rows []models.Challenge
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertChallenge creates a row and fills in its generated fields.
func (s *Store) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	if err := s.db.WithContext(ctx).Create(ch).Error; err != nil {
		return err
	}
	s.feed.Publish(ctx, Event{Table: TableChallenges, Action: ActionInsert, ID: ch.ID, UserID: ch.UserID})
	return nil
}

// UpdateChallenge applies a partial update to a row the user owns and returns
// the refreshed row.
func (s *Store) UpdateChallenge(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.Challenge, error) {
	var row models.Challenge
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&row).Updates(patch).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&row, row.ID).Error; err != nil {
		return nil, err
	}

	s.feed.Publish(ctx, Event{Table: TableChallenges, Action: ActionUpdate, ID: row.ID, UserID: row.UserID})
	return &row, nil
}

// DeleteChallenge removes a row the user owns.
func (s *Store) DeleteChallenge(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Challenge{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.feed.Publish(ctx, Event{Table: TableChallenges, Action: ActionDelete, ID: id, UserID: userID})
	return nil
}

// ActivateChallenge marks one challenge active and deactivates every other
// challenge of the same user in a single transaction, so the overlay never
// observes two active rows.
func (s *Store) ActivateChallenge(ctx context.Context, userID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Challenge
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&models.Challenge{}).
			Where("user_id = ? AND id <> ? AND is_active = ?", userID, id, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&row).Update("is_active", true).Error
	})
	if err != nil {
		return err
	}
	s.feed.Publish(ctx, Event{Table: TableChallenges, Action: ActionUpdate, ID: id, UserID: userID})
	return nil
}

// ListSettings returns every overlay settings row for the user.
func (s *Store) ListSettings(ctx context.Context, userID uint) ([]models.OverlaySettings, error) {
	var rows []models.OverlaySettings
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindSettingsByChallenge looks up the settings row scoped to a challenge.
// A nil challengeID matches the user's default row (challenge_id IS NULL).
// Returns ErrNotFound when no row matches.
func (s *Store) FindSettingsByChallenge(ctx context.Context, userID uint, challengeID *uint) (*models.OverlaySettings, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if challengeID != nil {
		q = q.Where("challenge_id = ?", *challengeID)
	} else {
		q = q.Where("challenge_id IS NULL")
	}

	var row models.OverlaySettings
	// Uniqueness per (user_id, challenge_id) is not enforced by the schema;
	// prefer the oldest row when duplicates exist.
	if err := q.Order("created_at ASC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// InsertSettings creates a settings row.
func (s *Store) InsertSettings(ctx context.Context, row *models.OverlaySettings) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	s.feed.Publish(ctx, Event{Table: TableOverlaySettings, Action: ActionInsert, ID: row.ID, UserID: row.UserID})
	return nil
}

// UpdateSettings applies a partial update by id and returns the refreshed row.
// gorm stamps updated_at on every write-through save.
func (s *Store) UpdateSettings(ctx context.Context, userID, id uint, patch map[string]interface{}) (*models.OverlaySettings, error) {
	var row models.OverlaySettings
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&row).Updates(patch).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&row, row.ID).Error; err != nil {
		return nil, err
	}

	s.feed.Publish(ctx, Event{Table: TableOverlaySettings, Action: ActionUpdate, ID: row.ID, UserID: row.UserID})
	return &row, nil
}
