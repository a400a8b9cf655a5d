package service

import (
	"context"
	"errors"
	"fmt"

	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"
	"loyaltysystem/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("amount must be positive")

const spendRetries = 3

// PointsService owns the read projections over the ledger and the debit path
// used by the order flow.
type PointsService struct {
	db             *gorm.DB
	userRepo       *repository.UserRepository
	ledgerRepo     *repository.LedgerRepository
	redemptionRepo *repository.RedemptionRepository
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		ledgerRepo:     repository.NewLedgerRepository(db),
		redemptionRepo: repository.NewRedemptionRepository(db),
	}
}

func (s *PointsService) Balance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

// Reconcile recomputes the balance from the ledger and reports whether the
// cached column agrees. Audit surface; it never repairs anything itself.
func (s *PointsService) Reconcile(ctx context.Context, userID int64) (cached, recomputed int64, err error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	sum, err := s.ledgerRepo.SumByUserID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if user.Points != sum {
		zap.L().Error("balance diverged from ledger",
			zap.String("user_id", user.UserID),
			zap.Int64("cached", user.Points),
			zap.Int64("ledger_sum", sum))
	}
	return user.Points, sum, nil
}

func (s *PointsService) History(ctx context.Context, userID int64, limit, offset int) ([]*model.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListByUserID(ctx, userID, limit, offset)
}

func (s *PointsService) Scans(ctx context.Context, userID int64, limit, offset int) ([]*model.Redemption, int64, error) {
	return s.redemptionRepo.ListByUserID(ctx, userID, limit, offset)
}

func (s *PointsService) TotalEarned(ctx context.Context, userID int64) (int64, error) {
	return s.redemptionRepo.SumPointsByUserID(ctx, userID)
}

// Spend debits points for the order flow. Sufficiency is checked here, by
// the component producing the debit: the deduct is a compare-and-swap on
// (balance, version), so a stale read loses the race instead of driving the
// balance negative. Negative balances are rejected outright.
func (s *PointsService) Spend(ctx context.Context, userID int64, amount int64, description string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	for i := 0; i < spendRetries; i++ {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		if user.Points < amount {
			return nil, repository.ErrInsufficientPoints
		}

		entry := &model.LedgerEntry{
			EntryNo:       idgen.GenerateEntryNo(),
			UserID:        userID,
			Amount:        -amount,
			Kind:          model.EntryKindSpent,
			Description:   description,
			BalanceBefore: user.Points,
			BalanceAfter:  user.Points - amount,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// The version check guarantees the balance is still the one the
			// snapshot above was taken from.
			if err := s.userRepo.DeductPoints(ctx, tx, userID, amount, user.Version); err != nil {
				return err
			}
			return s.ledgerRepo.Append(ctx, tx, entry)
		})

		if errors.Is(err, repository.ErrOptimisticLock) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return entry, nil
	}

	return nil, fmt.Errorf("spend contended too long: %w", repository.ErrOptimisticLock)
}
