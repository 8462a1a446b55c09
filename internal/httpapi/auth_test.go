package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/dara-tech/gasmanagement-sub000/internal/domain"
	"github.com/dara-tech/gasmanagement-sub000/internal/store/memory"
)

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, nil)
	verifier := NewAuthManager("ffffffffffffffffffffffffffffffff", time.Hour, nil)

	token, err := issuer.sign("admin", domain.RoleAdmin, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, nil)

	token, err := manager.sign("admin", domain.RoleAdmin, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenCarriesRole(t *testing.T) {
	manager := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, nil)

	token, err := manager.sign("refueler", domain.RoleStaff, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "refueler" || actor.Role != domain.RoleStaff {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestBootstrapUpgradesPlainTextPasswords(t *testing.T) {
	repo := memory.New()
	err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username: "legacy",
		Password: "plain-text-pw",
		Role:     domain.RoleStaff,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("seed legacy user: %v", err)
	}

	manager := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, repo)

	if _, err := manager.Login(domain.LoginRequest{Username: "legacy", Password: "plain-text-pw"}); err != nil {
		t.Fatalf("login with upgraded password: %v", err)
	}

	stored, err := repo.GetUser(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !isPasswordHash(stored.Password) {
		t.Fatalf("expected stored password to be hashed, got %q", stored.Password)
	}
}
