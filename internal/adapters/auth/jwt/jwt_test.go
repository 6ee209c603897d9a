package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	"dental-clinic/internal/ports/auth"
)

func TestManager_IssueVerify_RoundTrip(t *testing.T) {
	m := NewManager("s3cret", time.Hour)

	tok, err := m.Issue(auth.Claims{UserID: "u-1", Email: "a@b.c", Role: auth.RoleStaff, DeviceID: "d-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	c, err := m.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if c.UserID != "u-1" || c.Role != auth.RoleStaff || c.DeviceID != "d-1" || c.Email != "a@b.c" {
		t.Fatalf("unexpected claims: %#v", c)
	}
}

func TestManager_Verify_Expired(t *testing.T) {
	m := NewManager("s3cret", time.Minute)
	issuedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	tok, err := m.Issue(auth.Claims{UserID: "u-1", Role: auth.RolePatient})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	m.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := m.Verify(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestManager_Verify_WrongSecret(t *testing.T) {
	tok, err := NewManager("a", time.Hour).Issue(auth.Claims{UserID: "u-1", Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := NewManager("b", time.Hour).Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected error with wrong secret")
	}
}

func TestManager_Issue_RejectsUnknownRole(t *testing.T) {
	if _, err := NewManager("s", time.Hour).Issue(auth.Claims{UserID: "u", Role: "root"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
