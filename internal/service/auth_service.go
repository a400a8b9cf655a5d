package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"
	"loyaltysystem/pkg/idgen"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("invalid or expired token")
)

type AuthService struct {
	db          *gorm.DB
	cfg         *config.Config
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:          db,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

type RegisterRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	Password   string `json:"password" binding:"required,min=8"`
	DeviceInfo string `json:"device_info"`
}

type AuthResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Points int64  `json:"points"`
	Role   string `json:"role"`
	Token  string `json:"token"`
}

// Register creates the account and credits the welcome bonus. The bonus goes
// through the ledger inside the same transaction as the user row, so a brand
// new account already satisfies balance == sum(ledger).
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	bonus := s.cfg.Business.RegistrationBonus

	user := &model.User{
		UserID:       uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}

		if bonus <= 0 {
			return nil
		}

		entry := &model.LedgerEntry{
			EntryNo:       idgen.GenerateEntryNo(),
			UserID:        user.ID,
			Amount:        bonus,
			Kind:          model.EntryKindBonus,
			Description:   "Welcome bonus",
			BalanceBefore: 0,
			BalanceAfter:  bonus,
		}
		if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to record welcome bonus: %w", err)
		}

		return s.userRepo.IncreasePoints(ctx, tx, user.ID, bonus)
	})
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, user.ID, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	zap.L().Info("user registered",
		zap.String("user_id", user.UserID),
		zap.Int64("welcome_bonus", bonus))

	return &AuthResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Points: bonus,
		Role:   user.Role,
		Token:  session.Token,
	}, nil
}

type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, user.ID, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		zap.L().Warn("failed to update last login", zap.Error(err))
	}

	return &AuthResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Points: user.Points,
		Role:   user.Role,
		Token:  session.Token,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.sessionRepo.Revoke(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrUnauthorized
	}
	return err
}

// ValidateToken resolves a bearer token to its user. Expired, revoked and
// unknown sessions all fail; an expired session is never silently extended.
func (s *AuthService) ValidateToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !session.IsActive {
		return nil, ErrUnauthorized
	}
	if !now.Before(session.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID int64, deviceInfo string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		Token:      token,
		UserID:     userID,
		DeviceInfo: deviceInfo,
		ExpiresAt:  time.Now().Add(s.cfg.Business.SessionTTL()),
		IsActive:   true,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// generateToken draws 32 bytes from crypto/rand. Tokens are never derived
// from user id or time.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
