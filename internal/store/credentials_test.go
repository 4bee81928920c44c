package store

import (
	"strings"
	"testing"
	"time"
)

func TestCredentialCreateAndResolve(t *testing.T) {
	db := openTestDB(t)
	creds := NewCredentialStore(db)

	cred, token, err := creds.Create("u1", "laptop", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(token, "sk-") {
		t.Errorf("token = %q, want sk- prefix", token)
	}
	if cred.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil for ttl 0", cred.ExpiresAt)
	}

	got, err := creds.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == nil {
		t.Fatal("Resolve returned nil for a valid token")
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("LastUsedAt not recorded")
	}
}

func TestCredentialResolveUnknownToken(t *testing.T) {
	db := openTestDB(t)
	creds := NewCredentialStore(db)

	got, err := creds.Resolve("sk-deadbeef")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Errorf("Resolve = %+v, want nil", got)
	}
}

func TestCredentialRevoke(t *testing.T) {
	db := openTestDB(t)
	creds := NewCredentialStore(db)

	cred, token, err := creds.Create("u1", "laptop", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := creds.Revoke("someone-else", cred.ID)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok {
		t.Error("non-owner revoked a credential")
	}

	ok, err = creds.Revoke("u1", cred.ID)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !ok {
		t.Fatal("Revoke reported no rows")
	}

	got, err := creds.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Error("revoked token still resolves")
	}
}

func TestCredentialExpiry(t *testing.T) {
	db := openTestDB(t)
	creds := NewCredentialStore(db)

	cred, token, err := creds.Create("u1", "short-lived", time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cred.ExpiresAt == nil {
		t.Fatal("ExpiresAt not set")
	}

	// Force the credential into the past.
	past := time.Now().Add(-time.Hour).Unix()
	if _, err := db.Exec(`UPDATE api_credentials SET expires_at = ? WHERE id = ?`, past, cred.ID); err != nil {
		t.Fatalf("backdate credential: %v", err)
	}

	got, err := creds.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != nil {
		t.Error("expired token still resolves")
	}
}

func TestHashSecretStable(t *testing.T) {
	a := HashSecret("sk-abc")
	b := HashSecret("sk-abc")
	if a != b {
		t.Error("HashSecret not deterministic")
	}
	if a == HashSecret("sk-abd") {
		t.Error("distinct tokens share a hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
