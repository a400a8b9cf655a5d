package repository

import (
	"context"

	"loyaltysystem/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes one immutable ledger entry. There is deliberately no update
// or delete on this table.
func (r *LedgerRepository) Append(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// SumByUserID recomputes the balance from scratch. The cached users.points
// column must always equal this sum; reconciliation jobs and tests call it.
func (r *LedgerRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *LedgerRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) Create(ctx context.Context, tx *gorm.DB, scan *model.Redemption) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(scan).Error
}

func (r *RedemptionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*model.Redemption, int64, error) {
	var scans []*model.Redemption
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Redemption{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&scans).Error

	return scans, total, err
}

func (r *RedemptionRepository) SumPointsByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Redemption{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&total).Error
	return total, err
}
