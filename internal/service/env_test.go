package service

import (
	"context"
	"path/filepath"
	"testing"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/idempotency"
	"loyaltysystem/internal/infrastructure/database"
	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full engine against sqlite and miniredis, so the tests
// exercise the real transactions and the real reservation protocol.
type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	auth   *AuthService
	redeem *RedeemService
	points *PointsService
	codes  *CodeService
}

func newTestEnv(t *testing.T) *testEnv {
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

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{CodeRedeemed: "loyalty.code.redeemed"},
		},
		Business: config.BusinessConfig{
			SessionTTLDays:    30,
			RegistrationBonus: 0, // tests that want the bonus set it explicitly
		},
	}

	auth := NewAuthService(db, cfg)
	guard := idempotency.NewGuard(client, cfg.Business.IdemReserveTTL(), cfg.Business.IdemResultTTL())

	return &testEnv{
		db:     db,
		cfg:    cfg,
		auth:   auth,
		redeem: NewRedeemService(db, cfg, auth, guard),
		points: NewPointsService(db),
		codes:  NewCodeService(db),
	}
}

// registerUser creates an account and returns the row plus a live token.
func (e *testEnv) registerUser(t *testing.T, email string) (*model.User, string) {
	t.Helper()

	resp, err := e.auth.Register(context.Background(), &RegisterRequest{
		Name:     "Test User",
		Email:    email,
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}

	user, err := repository.NewUserRepository(e.db).GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("load user %s: %v", email, err)
	}
	return user, resp.Token
}

func (e *testEnv) createCode(t *testing.T, points int64) *model.Code {
	t.Helper()

	code, err := e.codes.InsertCode(context.Background(), &InsertCodeRequest{
		ProductName: "Engine Oil 5W-30",
		Category:    "lubricants",
		Points:      points,
		Description: "promo batch 42",
	}, 1)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	return code
}

// mustBalanceConsistent asserts the cached balance equals the recomputed
// ledger sum.
func (e *testEnv) mustBalanceConsistent(t *testing.T, userID int64) int64 {
	t.Helper()

	cached, sum, err := e.points.Reconcile(context.Background(), userID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if cached != sum {
		t.Fatalf("balance %d diverged from ledger sum %d", cached, sum)
	}
	return cached
}
