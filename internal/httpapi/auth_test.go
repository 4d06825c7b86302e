package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"tiendapos/internal/domain"
	"tiendapos/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.User
	updates int
}

func (s *userStoreStub) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.PasswordHash = passwordHash
	s.users[username] = user
	s.updates++
	return nil
}

func sha256Hex(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

func TestAuthManagerUpgradesLegacySHA256Hash(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.User{
			"admin": {
				ID:           1,
				Username:     "admin",
				PasswordHash: sha256Hex("admin123"),
				Role:         domain.RoleAdmin,
				Active:       true,
				CreatedAt:    time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	stub.mu.Lock()
	upgraded := stub.users["admin"].PasswordHash
	updates := stub.updates
	stub.mu.Unlock()

	if updates != 1 {
		t.Fatalf("expected exactly 1 password upgrade, got %d", updates)
	}
	if !strings.HasPrefix(upgraded, "$2") {
		t.Fatalf("expected bcrypt hash after upgrade, got %s", upgraded)
	}

	// Second login must verify against the upgraded hash without rewriting it.
	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	}); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
	stub.mu.Lock()
	updates = stub.updates
	stub.mu.Unlock()
	if updates != 1 {
		t.Fatalf("expected no further upgrades, got %d", updates)
	}
}

func TestLoginRejectsWrongPasswordOnLegacyHash(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.User{
			"admin": {
				ID:           1,
				Username:     "admin",
				PasswordHash: sha256Hex("admin123"),
				Role:         domain.RoleAdmin,
				Active:       true,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	}); err == nil {
		t.Fatalf("expected login to fail with wrong password")
	}
	if stub.updates != 0 {
		t.Fatalf("expected no upgrade on failed login")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.User{
			"vendedor": {
				ID:           2,
				Username:     "vendedor",
				PasswordHash: mustHashPassword(t, "vendedor123"),
				Role:         domain.RoleSeller,
				Active:       false,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "vendedor",
		Password: "vendedor123",
	}); err == nil {
		t.Fatalf("expected login to fail for inactive account")
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.User{
			"vendedor": {
				ID:           7,
				Username:     "vendedor",
				PasswordHash: mustHashPassword(t, "vendedor123"),
				Role:         domain.RoleSeller,
				Active:       true,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "vendedor",
		Password: "vendedor123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.ID != 7 || actor.Username != "vendedor" || actor.Role != domain.RoleSeller {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.User{
			"admin": {
				ID:           1,
				Username:     "admin",
				PasswordHash: mustHashPassword(t, "admin123"),
				Role:         domain.RoleAdmin,
				Active:       true,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	other := NewAuthManager("different-secret", time.Hour, stub)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
