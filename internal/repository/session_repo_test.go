package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyaltysystem/internal/model"
)

func TestSessionRevokeKeepsRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := &model.Session{
		Token:     "tok-1",
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Revoke(ctx, "tok-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, err := repo.GetByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("row must survive revocation, got %v", err)
	}
	if got.IsActive {
		t.Fatalf("session still active after revoke")
	}
}

func TestSessionRevokeTwice(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := &model.Session{
		Token:     "tok-2",
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Revoke(ctx, "tok-2"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}

	// A repeated logout of a still-existing token is a no-op, not an error.
	if err := repo.Revoke(ctx, "tok-2"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestSessionRevokeUnknown(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)

	err := repo.Revoke(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestDeactivateExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	now := time.Now()
	expired := &model.Session{Token: "old", UserID: 1, ExpiresAt: now.Add(-time.Hour), IsActive: true}
	live := &model.Session{Token: "new", UserID: 1, ExpiresAt: now.Add(time.Hour), IsActive: true}
	for _, s := range []*model.Session{expired, live} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	swept, err := repo.DeactivateExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeactivateExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, _ := repo.GetByToken(ctx, "new")
	if !got.IsActive {
		t.Fatalf("live session was swept")
	}
}
