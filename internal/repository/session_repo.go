package repository

import (
	"context"
	"errors"
	"time"

	"loyaltysystem/internal/model"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByToken returns the session row regardless of state; the service layer
// decides whether it is still usable.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Revoke deactivates a session but keeps the row for audit retention.
// Revoking an already-inactive session is a no-op, so a double logout
// succeeds; only a token that was never issued is an error.
func (r *SessionRepository) Revoke(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("token = ? AND is_active = ?", token, true).
		Update("is_active", false)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		err := r.db.WithContext(ctx).
			Model(&model.Session{}).
			Where("token = ?", token).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrSessionNotFound
		}
	}

	return nil
}

// DeactivateExpired flips is_active on sessions past their expiry. Validation
// rejects them regardless; this just keeps the active-session picture and
// index selectivity honest. Returns the number of sessions swept.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)

	return result.RowsAffected, result.Error
}
