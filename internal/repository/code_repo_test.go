package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"loyaltysystem/internal/infrastructure/database"
	"loyaltysystem/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func seedCode(t *testing.T, db *gorm.DB, value string, points int64) *model.Code {
	t.Helper()

	code := &model.Code{
		Code:        value,
		ProductName: "Engine Oil 5W-30",
		Category:    "lubricants",
		Points:      points,
		Status:      model.CodeStatusActive,
		CreatedBy:   1,
	}
	if err := db.Create(code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}
	return code
}

func TestMarkRedeemedOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)
	ctx := context.Background()

	seedCode(t, db, "code-1", 50)

	now := time.Now()
	if err := repo.MarkRedeemed(ctx, nil, "code-1", 7, now); err != nil {
		t.Fatalf("first MarkRedeemed: %v", err)
	}

	err := repo.MarkRedeemed(ctx, nil, "code-1", 8, now.Add(time.Second))
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("second MarkRedeemed: want ErrCodeAlreadyUsed, got %v", err)
	}

	code, err := repo.GetByValue(ctx, "code-1")
	if err != nil {
		t.Fatalf("GetByValue: %v", err)
	}
	if code.Status != model.CodeStatusRedeemed {
		t.Fatalf("status = %s, want REDEEMED", code.Status)
	}
	if code.RedeemedBy == nil || *code.RedeemedBy != 7 {
		t.Fatalf("redeemer = %v, want 7 (must not change after losing attempt)", code.RedeemedBy)
	}
	if code.ScannedCount != 1 {
		t.Fatalf("scanned_count = %d, want 1", code.ScannedCount)
	}
}

func TestMarkRedeemedConcurrent(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)
	ctx := context.Background()

	seedCode(t, db, "code-race", 50)

	const attempts = 8
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func(userID int64) {
			results <- repo.MarkRedeemed(ctx, nil, "code-race", userID, time.Now())
		}(int64(i + 1))
	}

	wins, conflicts := 0, 0
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCodeAlreadyUsed):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if conflicts != attempts-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

func TestRevoke(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)
	ctx := context.Background()

	seedCode(t, db, "code-revoke", 10)

	if err := repo.Revoke(ctx, "code-revoke"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// a revoked code cannot be redeemed
	err := repo.MarkRedeemed(ctx, nil, "code-revoke", 1, time.Now())
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("MarkRedeemed on revoked: want ErrCodeAlreadyUsed, got %v", err)
	}

	// a redeemed code cannot be revoked
	seedCode(t, db, "code-used", 10)
	if err := repo.MarkRedeemed(ctx, nil, "code-used", 1, time.Now()); err != nil {
		t.Fatalf("MarkRedeemed: %v", err)
	}
	err = repo.Revoke(ctx, "code-used")
	if !errors.Is(err, ErrCodeNotActive) {
		t.Fatalf("Revoke on redeemed: want ErrCodeNotActive, got %v", err)
	}
}

func TestGetByValueNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)

	_, err := repo.GetByValue(context.Background(), "nope")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("want ErrCodeNotFound, got %v", err)
	}
}

func TestTouchScan(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)
	ctx := context.Background()

	seedCode(t, db, "code-touch", 10)

	if err := repo.TouchScan(ctx, "code-touch", time.Now()); err != nil {
		t.Fatalf("TouchScan: %v", err)
	}

	code, _ := repo.GetByValue(ctx, "code-touch")
	if code.ScannedCount != 1 {
		t.Fatalf("scanned_count = %d, want 1", code.ScannedCount)
	}
	if code.Status != model.CodeStatusActive {
		t.Fatalf("TouchScan must not change status, got %s", code.Status)
	}
}
