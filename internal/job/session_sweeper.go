package job

import (
	"context"
	"time"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionSweeper periodically deactivates sessions past their expiry.
// Validation rejects expired sessions on its own; the sweep is housekeeping
// so the active-session set stays small and queryable.
type SessionSweeper struct {
	sessionRepo *repository.SessionRepository
	interval    time.Duration
}

func NewSessionSweeper(db *gorm.DB, cfg *config.Config) *SessionSweeper {
	minutes := cfg.Business.SessionSweepInterval
	if minutes <= 0 {
		minutes = 60
	}
	return &SessionSweeper{
		sessionRepo: repository.NewSessionRepository(db),
		interval:    time.Duration(minutes) * time.Minute,
	}
}

func (s *SessionSweeper) Start(ctx context.Context) {
	zap.L().Info("session sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	swept, err := s.sessionRepo.DeactivateExpired(ctx, time.Now())
	if err != nil {
		zap.L().Error("session sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		zap.L().Info("expired sessions deactivated", zap.Int64("count", swept))
	}
}
