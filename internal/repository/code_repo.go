package repository

import (
	"context"
	"errors"
	"time"

	"loyaltysystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCodeNotFound    = errors.New("code not found")
	ErrCodeAlreadyUsed = errors.New("code already used")
	ErrCodeNotActive   = errors.New("code is not active")
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Create(ctx context.Context, code *model.Code) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *CodeRepository) GetByValue(ctx context.Context, value string) (*model.Code, error) {
	var code model.Code
	err := r.db.WithContext(ctx).Where("code = ?", value).First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

// MarkRedeemed moves a code ACTIVE -> REDEEMED with a single conditional
// update. The WHERE status = 'ACTIVE' clause is the compare-and-swap: when
// two requests race on the same code the database linearizes the updates and
// exactly one matches a row. Application-level read-then-write is never
// trusted for this transition.
func (r *CodeRepository) MarkRedeemed(ctx context.Context, tx *gorm.DB, value string, redeemerID int64, now time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Code{}).
		Where("code = ? AND status = ?", value, model.CodeStatusActive).
		Updates(map[string]interface{}{
			"status":        model.CodeStatusRedeemed,
			"redeemed_by":   redeemerID,
			"redeemed_at":   now,
			"scanned_count": gorm.Expr("scanned_count + 1"),
			"last_scanned":  now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Lost the race, or the code was already terminal. Either way the
		// caller reports "already used"; the two are indistinguishable to
		// the client by design.
		return ErrCodeAlreadyUsed
	}

	return nil
}

// Revoke moves a code ACTIVE -> REVOKED, same conditional-update shape as
// MarkRedeemed. A redeemed code cannot be revoked.
func (r *CodeRepository) Revoke(ctx context.Context, value string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("code = ? AND status = ?", value, model.CodeStatusActive).
		Update("status", model.CodeStatusRevoked)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCodeNotActive
	}

	return nil
}

// TouchScan bumps the observational attempt counter for a code that was
// looked at but not redeemed (already-used resubmissions). Never part of a
// correctness decision.
func (r *CodeRepository) TouchScan(ctx context.Context, value string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("code = ?", value).
		Updates(map[string]interface{}{
			"scanned_count": gorm.Expr("scanned_count + 1"),
			"last_scanned":  now,
		}).Error
}

func (r *CodeRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *CodeRepository) SumScans(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Code{}).
		Select("COALESCE(SUM(scanned_count), 0)").
		Scan(&total).Error
	return total, err
}
