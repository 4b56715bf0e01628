package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ProfileRepository interface {
	// Resolve fetches the base rows and every role-specific row for the
	// given ids in one call. Missing ids simply produce no rows.
	Resolve(ctx context.Context, ids []string) (*ProfileRows, error)
	SetPresence(ctx context.Context, userID string, online bool, activityAt time.Time) error
	// ListByRoles returns contact candidates for the role-gated contact
	// list, excluding the requesting user.
	ListByRoles(ctx context.Context, roles []string, excludeID string) ([]Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Resolve(ctx context.Context, ids []string) (*ProfileRows, error) {
	rows := &ProfileRows{}
	if len(ids) == 0 {
		return rows, nil
	}

	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows.Base).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve profiles: %w", err)
	}
	if err := r.db.WithContext(ctx).Where("profile_id IN ?", ids).Find(&rows.Workers).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve worker profiles: %w", err)
	}
	if err := r.db.WithContext(ctx).Where("profile_id IN ?", ids).Find(&rows.Agencies).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve agency profiles: %w", err)
	}
	return rows, nil
}

func (r *profileRepository) SetPresence(ctx context.Context, userID string, online bool, activityAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_online":        online,
			"last_activity_at": &activityAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set presence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepository) ListByRoles(ctx context.Context, roles []string, excludeID string) ([]Profile, error) {
	var profiles []Profile
	err := r.db.WithContext(ctx).
		Where("role IN ? AND id <> ?", roles, excludeID).
		Order("display_name ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return profiles, nil
}
