package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/stategraph/pkg/adapters/memory"
	"github.com/aretw0/stategraph/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "^ssn"})
	if err != nil {
		t.Fatal(err)
	}
	secure := mw(underlying)
	ctx := context.Background()

	snap := snapshot("pii", map[string]any{
		"username":      "jdoe",
		"user_password": "secret123",
		"ssn_number":    "999-99-9999",
		"password_age":  12.0,
	})
	if err := secure.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if snap.Values["user_password"] != "secret123" {
		t.Error("Middleware modified the caller's snapshot")
	}

	stored, err := underlying.Load(ctx, "pii")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Values["username"] != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if stored.Values["user_password"] != middleware.Mask {
		t.Errorf("Password should be masked, got: %v", stored.Values["user_password"])
	}
	if stored.Values["ssn_number"] != middleware.Mask {
		t.Errorf("SSN should be masked, got: %v", stored.Values["ssn_number"])
	}
	if stored.Values["password_age"] != 12.0 {
		t.Errorf("Numbers must not be masked, got: %v", stored.Values["password_age"])
	}
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestChain_MasksBeforeEncrypting(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err != nil {
		t.Fatal(err)
	}
	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()

	if err := store.Save(ctx, snapshot("c", map[string]any{"token": "abc"})); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Values["token"] != middleware.Mask {
		t.Errorf("Expected masked token after decrypt, got %v", loaded.Values["token"])
	}
}
