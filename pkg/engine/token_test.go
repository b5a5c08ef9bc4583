package engine

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestParseAccessToken(t *testing.T) {
	id := uuid.MustParse("ec2c1d46-6a4b-4751-a310-af9601317f2d")

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "0." + id.String() + ".C2IgxjjLF7qSshsbwe8JGcbM075YXw:X8vbvA0bduihIDe/qrzIQQ==", false},
		{"no key", "0." + id.String() + ".secret", true},
		{"empty key", "0." + id.String() + ".secret:", true},
		{"key not base64", "0." + id.String() + ".secret:!!", true},
		{"wrong version", "2." + id.String() + ".secret:AAAA", true},
		{"bad id", "0.not-a-uuid.secret:AAAA", true},
		{"missing secret", "0." + id.String() + ".:AAAA", true},
		{"two parts", "0." + id.String() + ":AAAA", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseAccessToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAccessToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (tok.ID != id || tok.String() != tt.token) {
				t.Errorf("ParseAccessToken() = %+v", tok)
			}
		})
	}
}

func TestNewAccessToken(t *testing.T) {
	id := uuid.New()
	tok, err := newAccessToken(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok.ClientSecret) != clientSecretLength {
		t.Errorf("client secret length = %d", len(tok.ClientSecret))
	}
	if strings.Trim(tok.ClientSecret, alphanumeric) != "" {
		t.Errorf("client secret %q is not alphanumeric", tok.ClientSecret)
	}

	parsed, err := ParseAccessToken(tok.String())
	if err != nil {
		t.Fatalf("generated token does not parse: %v", err)
	}
	if parsed != tok {
		t.Errorf("parsed = %+v, want %+v", parsed, tok)
	}

	hash, err := hashCredential(tok, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !verifyCredential(hash, tok) {
		t.Error("credential must verify against its own hash")
	}
	tok.Key = "AAAA"
	if verifyCredential(hash, tok) {
		t.Error("a different key must not verify")
	}
}
