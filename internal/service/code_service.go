package service

import (
	"context"
	"errors"

	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidReward rejects non-positive rewards at creation time, so the
// redemption engine never sees one.
var ErrInvalidReward = errors.New("reward points must be positive")

// CodeService is the operator-facing side: the engine only ever reads codes
// created here.
type CodeService struct {
	db       *gorm.DB
	codeRepo *repository.CodeRepository
	userRepo *repository.UserRepository
}

func NewCodeService(db *gorm.DB) *CodeService {
	return &CodeService{
		db:       db,
		codeRepo: repository.NewCodeRepository(db),
		userRepo: repository.NewUserRepository(db),
	}
}

type InsertCodeRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Points      int64  `json:"points" binding:"required"`
	Description string `json:"description"`
}

func (s *CodeService) InsertCode(ctx context.Context, req *InsertCodeRequest, ownerID int64) (*model.Code, error) {
	if req.Points <= 0 {
		return nil, ErrInvalidReward
	}

	code := &model.Code{
		Code:        uuid.NewString(),
		ProductName: req.ProductName,
		Category:    req.Category,
		Points:      req.Points,
		Description: req.Description,
		Status:      model.CodeStatusActive,
		CreatedBy:   ownerID,
	}

	if err := s.codeRepo.Create(ctx, code); err != nil {
		return nil, err
	}

	zap.L().Info("code created",
		zap.String("code", code.Code),
		zap.String("product", code.ProductName),
		zap.Int64("points", code.Points))

	return code, nil
}

func (s *CodeService) Revoke(ctx context.Context, value string) error {
	return s.codeRepo.Revoke(ctx, value)
}

func (s *CodeService) Lookup(ctx context.Context, value string) (*model.Code, error) {
	return s.codeRepo.GetByValue(ctx, value)
}

type Statistics struct {
	TotalUsers    int64 `json:"total_users"`
	ActiveCodes   int64 `json:"active_codes"`
	RedeemedCodes int64 `json:"redeemed_codes"`
	RevokedCodes  int64 `json:"revoked_codes"`
	TotalScans    int64 `json:"total_scans"`
}

func (s *CodeService) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}
	var err error

	if stats.TotalUsers, err = s.userRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.ActiveCodes, err = s.codeRepo.CountByStatus(ctx, model.CodeStatusActive); err != nil {
		return nil, err
	}
	if stats.RedeemedCodes, err = s.codeRepo.CountByStatus(ctx, model.CodeStatusRedeemed); err != nil {
		return nil, err
	}
	if stats.RevokedCodes, err = s.codeRepo.CountByStatus(ctx, model.CodeStatusRevoked); err != nil {
		return nil, err
	}
	if stats.TotalScans, err = s.codeRepo.SumScans(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}
