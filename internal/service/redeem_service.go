package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/idempotency"
	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"
	"loyaltysystem/pkg/idgen"
	"loyaltysystem/pkg/response"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrMalformedCode means the submitted value is not a code at all
	// (client error, never retried).
	ErrMalformedCode = errors.New("malformed code value")
	// ErrTryAgain is the transient-fault answer: nothing committed, the
	// client should resubmit.
	ErrTryAgain = errors.New("temporary failure, try again")
)

const lookupRetries = 3

// RedeemService is the redemption engine. A request walks
// authenticate -> deduplicate -> validate -> commit, and every gate exits
// with a stable rejection reason. The commit step is one database
// transaction; the at-most-once property rests entirely on the conditional
// update in CodeRepository.MarkRedeemed, not on any in-process lock, so it
// holds across engine instances.
type RedeemService struct {
	db             *gorm.DB
	cfg            *config.Config
	auth           *AuthService
	guard          *idempotency.Guard
	codeRepo       *repository.CodeRepository
	userRepo       *repository.UserRepository
	ledgerRepo     *repository.LedgerRepository
	redemptionRepo *repository.RedemptionRepository
	outboxRepo     *repository.OutboxRepository
}

func NewRedeemService(db *gorm.DB, cfg *config.Config, auth *AuthService, guard *idempotency.Guard) *RedeemService {
	return &RedeemService{
		db:             db,
		cfg:            cfg,
		auth:           auth,
		guard:          guard,
		codeRepo:       repository.NewCodeRepository(db),
		userRepo:       repository.NewUserRepository(db),
		ledgerRepo:     repository.NewLedgerRepository(db),
		redemptionRepo: repository.NewRedemptionRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

type RedeemRequest struct {
	Code        string `json:"qr_code" binding:"required"`
	Location    string `json:"location"`
	ClientNonce string `json:"client_nonce"`
}

// RedeemResult is the client-facing outcome. Whatever is returned for the
// first attempt at a key is stored by the guard and replayed byte-for-byte
// to duplicates.
type RedeemResult struct {
	Valid           bool   `json:"valid"`
	Error           string `json:"error,omitempty"`
	ScanID          string `json:"scan_id,omitempty"`
	ProductName     string `json:"product_name,omitempty"`
	ProductCategory string `json:"product_category,omitempty"`
	PointsEarned    int64  `json:"points_earned,omitempty"`
	Description     string `json:"description,omitempty"`
	UsedAt          string `json:"used_at,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// Redeem runs one redemption attempt end to end.
func (s *RedeemService) Redeem(ctx context.Context, token string, req *RedeemRequest) (*RedeemResult, error) {
	// Authenticating
	user, err := s.auth.ValidateToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return &RedeemResult{Valid: false, Error: response.ReasonUnauthorized}, nil
		}
		return nil, ErrTryAgain
	}

	codeValue, err := ParseCodeValue(req.Code)
	if err != nil {
		return nil, err
	}

	// Deduplicating
	key := idempotency.Key(user.ID, codeValue, req.ClientNonce)
	stored, reserved, err := s.guard.CheckAndReserve(ctx, key)
	if err != nil {
		if !errors.Is(err, idempotency.ErrInFlight) {
			zap.L().Error("idempotency reserve failed", zap.Error(err))
		}
		return nil, ErrTryAgain
	}
	if !reserved {
		var replay RedeemResult
		if err := json.Unmarshal(stored, &replay); err != nil {
			zap.L().Error("stored idempotency result corrupt", zap.String("key", key), zap.Error(err))
			return nil, ErrTryAgain
		}
		return &replay, nil
	}

	// Reservation held from here: every exit either records a result or
	// releases the key.
	result, err := s.attempt(ctx, user, codeValue, req.Location)
	if err != nil {
		if relErr := s.guard.Release(ctx, key); relErr != nil {
			zap.L().Warn("failed to release idempotency reservation", zap.String("key", key), zap.Error(relErr))
		}
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err == nil {
		err = s.guard.RecordResult(ctx, key, payload)
	}
	if err != nil {
		// The redemption committed; worst case a retry within the window
		// sees already_used instead of the stored success.
		zap.L().Warn("failed to record idempotency result", zap.String("key", key), zap.Error(err))
	}

	return result, nil
}

// attempt runs the Validating and Committing steps. It returns a terminal
// result (success or rejection) with a nil error, or a non-nil error for
// transient faults where nothing committed.
func (s *RedeemService) attempt(ctx context.Context, user *model.User, codeValue, location string) (*RedeemResult, error) {
	// Validating
	code, err := s.lookupCode(ctx, codeValue)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return &RedeemResult{Valid: false, Error: response.ReasonCodeNotFound}, nil
		}
		return nil, ErrTryAgain
	}

	if code.Status != model.CodeStatusActive {
		return s.rejectUsed(ctx, code), nil
	}

	// Committing: mark code, scan row, ledger entry, cached balance and the
	// outbox event commit together or not at all.
	now := time.Now()
	scanNo := idgen.GenerateScanNo()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.codeRepo.MarkRedeemed(ctx, tx, codeValue, user.ID, now); err != nil {
			return err
		}

		account, err := s.userRepo.GetByIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		scan := &model.Redemption{
			ScanNo:          scanNo,
			CodeID:          code.ID,
			UserID:          user.ID,
			PointsEarned:    code.Points,
			ProductName:     code.ProductName,
			ProductCategory: code.Category,
			Location:        location,
		}
		if err := s.redemptionRepo.Create(ctx, tx, scan); err != nil {
			return fmt.Errorf("failed to record scan: %w", err)
		}

		entry := &model.LedgerEntry{
			EntryNo:       idgen.GenerateEntryNo(),
			UserID:        user.ID,
			Amount:        code.Points,
			Kind:          model.EntryKindEarned,
			Description:   fmt.Sprintf("Code redeemed (%s)", code.ProductName),
			CodeID:        &code.ID,
			BalanceBefore: account.Points,
			BalanceAfter:  account.Points + code.Points,
		}
		if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		if err := s.userRepo.IncreasePoints(ctx, tx, user.ID, code.Points); err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

		return s.stageEvent(ctx, tx, code, user, scanNo, now)
	})

	if err != nil {
		if errors.Is(err, repository.ErrCodeAlreadyUsed) {
			// Lost the conditional update to a concurrent request. Reported
			// identically to a pre-existing already_used. Re-read so used_at
			// reflects the winner's commit.
			if fresh, lookupErr := s.codeRepo.GetByValue(ctx, codeValue); lookupErr == nil {
				code = fresh
			}
			return s.rejectUsed(ctx, code), nil
		}
		zap.L().Error("redemption commit failed",
			zap.String("code", codeValue),
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return nil, ErrTryAgain
	}

	zap.L().Info("code redeemed",
		zap.String("code", codeValue),
		zap.String("user_id", user.UserID),
		zap.Int64("points", code.Points))

	return &RedeemResult{
		Valid:           true,
		ScanID:          scanNo,
		ProductName:     code.ProductName,
		ProductCategory: code.Category,
		PointsEarned:    code.Points,
		Description:     code.Description,
		Timestamp:       now.Format(time.RFC3339),
	}, nil
}

func (s *RedeemService) lookupCode(ctx context.Context, codeValue string) (*model.Code, error) {
	var lastErr error
	for i := 0; i < lookupRetries; i++ {
		code, err := s.codeRepo.GetByValue(ctx, codeValue)
		if err == nil || errors.Is(err, repository.ErrCodeNotFound) {
			return code, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func (s *RedeemService) rejectUsed(ctx context.Context, code *model.Code) *RedeemResult {
	// Attempt counter only; failure here changes nothing user-visible.
	if err := s.codeRepo.TouchScan(ctx, code.Code, time.Now()); err != nil {
		zap.L().Warn("failed to bump scan counter", zap.String("code", code.Code), zap.Error(err))
	}

	result := &RedeemResult{
		Valid:       false,
		Error:       response.ReasonAlreadyUsed,
		ProductName: code.ProductName,
	}
	if code.RedeemedAt != nil {
		result.UsedAt = code.RedeemedAt.Format(time.RFC3339)
	}
	return result
}

func (s *RedeemService) stageEvent(ctx context.Context, tx *gorm.DB, code *model.Code, user *model.User, scanNo string, now time.Time) error {
	payload, err := json.Marshal(map[string]interface{}{
		"code":             code.Code,
		"scan_id":          scanNo,
		"user_id":          user.UserID,
		"points":           code.Points,
		"product_name":     code.ProductName,
		"product_category": code.Category,
		"redeemed_at":      now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: code.Code,
		Topic:      s.cfg.Kafka.Topic.CodeRedeemed,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Stage(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to stage event: %w", err)
	}
	return nil
}

// ParseCodeValue extracts the code value from a raw scan. Clients send either
// the bare value or the full label payload "NSP:<value>:<product>:<points>".
func ParseCodeValue(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMalformedCode
	}

	if !strings.HasPrefix(raw, "NSP:") {
		return raw, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[1] == "" {
		return "", ErrMalformedCode
	}
	return parts[1], nil
}
