package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/smkit/smkit/pkg/protocol"
)

func TestOpenLocalReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "engine.db")
	cfg := Config{Passphrase: "local", KDF: testKDF, BcryptCost: bcrypt.MinCost}

	first, err := OpenLocal(ctx, path, cfg)
	if err != nil {
		t.Fatalf("OpenLocal() error = %v", err)
	}
	org, err := first.CreateOrganization(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	token, err := first.IssueAccessToken(ctx, org, "ci", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := OpenLocal(ctx, path, cfg)
	if err != nil {
		t.Fatalf("OpenLocal() reopen error = %v", err)
	}
	defer second.Close()

	if _, err := second.Store().GetOrganization(ctx, org); err != nil {
		t.Errorf("GetOrganization() after reopen error = %v", err)
	}
	resp := run(t, second.Engine, protocol.LoginAccessToken{Request: protocol.AccessTokenLoginRequest{AccessToken: token}})
	if !resp.Success {
		t.Errorf("login after reopen failed: %s", errorMessage(resp))
	}
}

func TestOpenLocalWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "engine.db")

	l, err := OpenLocal(ctx, path, Config{Passphrase: "right", KDF: testKDF})
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	if _, err := OpenLocal(ctx, path, Config{Passphrase: "wrong", KDF: testKDF}); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("OpenLocal() error = %v, want ErrWrongPassphrase", err)
	}
	if _, err := OpenLocal(ctx, "", Config{Passphrase: "right"}); err == nil {
		t.Error("OpenLocal() without path expected error")
	}
}
