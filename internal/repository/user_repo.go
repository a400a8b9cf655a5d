package repository

import (
	"context"
	"errors"
	"time"

	"loyaltysystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrOptimisticLock     = errors.New("concurrent balance update, retry")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate row-locks the user inside tx. Used by the commit step so
// BalanceBefore/BalanceAfter snapshots cannot be interleaved by another
// credit to the same user.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	query := tx.WithContext(ctx)
	// sqlite has no FOR UPDATE; its writer lock serializes the transaction
	// anyway.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var user model.User
	err := query.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IncreasePoints credits the cached balance. Callers must pair it with a
// ledger append inside the same transaction.
func (r *UserRepository) IncreasePoints(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points":  gorm.Expr("points + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DeductPoints debits the cached balance with an optimistic-lock
// compare-and-swap: the update only matches when the balance still covers the
// amount and the version is the one the caller read. On a miss it re-reads to
// tell "not enough points" apart from "lost a concurrent update".
func (r *UserRepository) DeductPoints(ctx context.Context, tx *gorm.DB, userID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND points >= ? AND version = ?", userID, amount, version).
		Updates(map[string]interface{}{
			"points":  gorm.Expr("points - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		user, err := r.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Points < amount {
			return ErrInsufficientPoints
		}
		return ErrOptimisticLock
	}

	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login", now).Error
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}
