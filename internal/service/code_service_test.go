package service

import (
	"context"
	"errors"
	"testing"

	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"
)

func TestInsertCodeRejectsInvalidReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, points := range []int64{0, -5} {
		_, err := env.codes.InsertCode(ctx, &InsertCodeRequest{
			ProductName: "Brake Pads",
			Category:    "brakes",
			Points:      points,
		}, 1)
		if !errors.Is(err, ErrInvalidReward) {
			t.Fatalf("points %d: want ErrInvalidReward, got %v", points, err)
		}
	}
}

func TestRevokeThenRedeemRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, token := env.registerUser(t, "u1@example.com")
	code := env.createCode(t, 25)

	if err := env.codes.Revoke(ctx, code.Code); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	result, err := env.redeem.Redeem(ctx, token, &RedeemRequest{Code: code.Code})
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.Valid {
		t.Fatalf("revoked code redeemed: %+v", result)
	}

	// Revocation is terminal; it cannot be re-revoked either.
	err = env.codes.Revoke(ctx, code.Code)
	if !errors.Is(err, repository.ErrCodeNotActive) {
		t.Fatalf("want ErrCodeNotActive, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, token := env.registerUser(t, "u1@example.com")
	env.registerUser(t, "u2@example.com")

	redeemed := env.createCode(t, 10)
	env.createCode(t, 10)
	revoked := env.createCode(t, 10)

	if err := env.codes.Revoke(ctx, revoked.Code); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	result, err := env.redeem.Redeem(ctx, token, &RedeemRequest{Code: redeemed.Code})
	if err != nil || !result.Valid {
		t.Fatalf("redeem: err=%v result=%+v", err, result)
	}

	stats, err := env.codes.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Fatalf("total_users = %d, want 2", stats.TotalUsers)
	}
	if stats.ActiveCodes != 1 || stats.RedeemedCodes != 1 || stats.RevokedCodes != 1 {
		t.Fatalf("code counts wrong: %+v", stats)
	}
	if stats.TotalScans != 1 {
		t.Fatalf("total_scans = %d, want 1", stats.TotalScans)
	}
}

func TestLookupReflectsRedemption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, token := env.registerUser(t, "u1@example.com")
	code := env.createCode(t, 40)

	result, err := env.redeem.Redeem(ctx, token, &RedeemRequest{Code: code.Code})
	if err != nil || !result.Valid {
		t.Fatalf("redeem: err=%v result=%+v", err, result)
	}

	fresh, err := env.codes.Lookup(ctx, code.Code)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if fresh.Status != model.CodeStatusRedeemed {
		t.Fatalf("status = %s, want %s", fresh.Status, model.CodeStatusRedeemed)
	}
	if fresh.RedeemedBy == nil || *fresh.RedeemedBy != user.ID {
		t.Fatalf("redeemed_by not recorded: %+v", fresh)
	}
	if fresh.RedeemedAt == nil || fresh.LastScanned == nil || fresh.ScannedCount != 1 {
		t.Fatalf("scan bookkeeping wrong: %+v", fresh)
	}
}
