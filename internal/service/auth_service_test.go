package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyaltysystem/internal/model"
)

func TestRegisterWelcomeBonus(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Business.RegistrationBonus = 100
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, &RegisterRequest{
		Name:     "New User",
		Email:    "bonus@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Points != 100 {
		t.Fatalf("points = %d, want 100", resp.Points)
	}

	user, err := env.auth.ValidateToken(ctx, resp.Token, time.Now())
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	// The bonus went through the ledger, not a raw column write.
	if got := env.mustBalanceConsistent(t, user.ID); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}

	entries, total, err := env.points.History(ctx, user.ID, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 1 || entries[0].Kind != model.EntryKindBonus || entries[0].Amount != 100 {
		t.Fatalf("bonus entry wrong: total=%d entries=%+v", total, entries)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1@example.com")

	_, err := env.auth.Login(ctx, &LoginRequest{
		Email:    "u1@example.com",
		Password: "wrong",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}

	// Unknown account reads the same as a wrong password.
	_, err = env.auth.Login(ctx, &LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginIssuesFreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, registerToken := env.registerUser(t, "u1@example.com")

	resp, err := env.auth.Login(ctx, &LoginRequest{
		Email:    "u1@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token == "" || resp.Token == registerToken {
		t.Fatalf("login must issue a fresh token")
	}

	if _, err := env.auth.ValidateToken(ctx, resp.Token, time.Now()); err != nil {
		t.Fatalf("fresh token invalid: %v", err)
	}
}

func TestLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, token := env.registerUser(t, "u1@example.com")

	if _, err := env.auth.ValidateToken(ctx, token, time.Now()); err != nil {
		t.Fatalf("token invalid before logout: %v", err)
	}

	if err := env.auth.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	_, err := env.auth.ValidateToken(ctx, token, time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked token accepted: %v", err)
	}
}

func TestValidateTokenExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, token := env.registerUser(t, "u1@example.com")

	// Prior successful use does not matter once the horizon passes.
	if _, err := env.auth.ValidateToken(ctx, token, time.Now()); err != nil {
		t.Fatalf("token invalid while fresh: %v", err)
	}

	future := time.Now().Add(31 * 24 * time.Hour)
	_, err := env.auth.ValidateToken(ctx, token, future)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestValidateTokenUnknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ValidateToken(context.Background(), "made-up-token", time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown token accepted: %v", err)
	}

	_, err = env.auth.ValidateToken(context.Background(), "", time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token accepted: %v", err)
	}
}
