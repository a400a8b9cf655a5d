package job

import (
	"context"
	"time"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/infrastructure/mq"
	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender drains staged redemption events to kafka. Delivery is
// at-least-once: a message is only marked SENT after the broker acks, so a
// crash between send and mark replays it.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	zap.L().Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *OutboxSender) drain(ctx context.Context) {
	messages, err := s.outboxRepo.ListPending(ctx, s.batchSize)
	if err != nil {
		zap.L().Error("failed to list pending events", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.send(ctx, msg)
	}
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if markErr := s.outboxRepo.MarkSent(ctx, msg.ID); markErr != nil {
			zap.L().Error("failed to mark event sent", zap.Int64("id", msg.ID), zap.Error(markErr))
		}
		return
	}

	zap.L().Warn("event publish failed",
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.Error(err))

	if recErr := s.outboxRepo.RecordFailure(ctx, msg.ID, msg.RetryCount, s.cfg.Business.MaxRetryCount); recErr != nil {
		zap.L().Error("failed to record event failure", zap.Int64("id", msg.ID), zap.Error(recErr))
	}
}
