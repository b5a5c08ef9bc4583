package engine

import (
	"strings"
	"testing"

	"github.com/smkit/smkit/pkg/protocol"
)

func intPtr(v int) *int { return &v }

func countIn(s, set string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(set, r) {
			n++
		}
	}
	return n
}

func TestGeneratePassword(t *testing.T) {
	tests := []struct {
		name string
		req  protocol.PasswordGeneratorRequest
	}{
		{"defaults", protocol.PasswordGeneratorRequest{
			Lowercase: true, Uppercase: true, Numbers: true, Special: true, Length: 24, AvoidAmbiguous: true,
		}},
		{"minimums", protocol.PasswordGeneratorRequest{
			Lowercase: true, Uppercase: true, Numbers: true, Special: true, Length: 128,
			MinLowercase: intPtr(2), MinUppercase: intPtr(2), MinNumber: intPtr(4), MinSpecial: intPtr(4),
		}},
		{"shortest", protocol.PasswordGeneratorRequest{
			Lowercase: true, Uppercase: true, Numbers: true, Special: true, Length: 4,
		}},
		{"numbers only", protocol.PasswordGeneratorRequest{Numbers: true, Length: 10, MinNumber: intPtr(10)}},
		{"zero minimum", protocol.PasswordGeneratorRequest{Lowercase: true, Special: true, Length: 5, MinSpecial: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				pw, err := GeneratePassword(tt.req)
				if err != nil {
					t.Fatalf("GeneratePassword() error = %v", err)
				}
				if len(pw) != tt.req.Length {
					t.Fatalf("len = %d, want %d", len(pw), tt.req.Length)
				}

				for _, c := range passwordClasses(tt.req) {
					if got := countIn(pw, c.chars); got < c.min {
						t.Fatalf("%q has %d of %q, want at least %d", pw, got, c.chars, c.min)
					}
				}

				allowed := ""
				for _, c := range passwordClasses(tt.req) {
					allowed += c.chars
				}
				if n := countIn(pw, allowed); n != len(pw) {
					t.Fatalf("%q contains characters outside the enabled sets", pw)
				}
			}
		})
	}
}

func TestGeneratePasswordAvoidAmbiguous(t *testing.T) {
	req := protocol.PasswordGeneratorRequest{
		Lowercase: true, Uppercase: true, Numbers: true, Length: 255, AvoidAmbiguous: true,
	}
	for i := 0; i < 20; i++ {
		pw, err := GeneratePassword(req)
		if err != nil {
			t.Fatal(err)
		}
		if strings.ContainsAny(pw, "lIO01") {
			t.Fatalf("%q contains an ambiguous character", pw)
		}
	}
}

func TestGeneratePasswordUnsetMinimumDefaultsToOne(t *testing.T) {
	req := protocol.PasswordGeneratorRequest{Lowercase: true, Numbers: true, Length: 4, MinLowercase: intPtr(3)}
	for i := 0; i < 50; i++ {
		pw, err := GeneratePassword(req)
		if err != nil {
			t.Fatal(err)
		}
		if countIn(pw, numberChars) < 1 {
			t.Fatalf("%q has no digit", pw)
		}
	}
}

func TestGeneratePasswordInvalid(t *testing.T) {
	tests := []struct {
		name string
		req  protocol.PasswordGeneratorRequest
	}{
		{"too short", protocol.PasswordGeneratorRequest{Lowercase: true, Length: 3}},
		{"too long", protocol.PasswordGeneratorRequest{Lowercase: true, Length: 256}},
		{"no sets", protocol.PasswordGeneratorRequest{Length: 10}},
		{"explicit minimums too large", protocol.PasswordGeneratorRequest{Lowercase: true, Length: 4, MinLowercase: intPtr(5)}},
		{"implicit minimums too large", protocol.PasswordGeneratorRequest{
			Lowercase: true, Uppercase: true, Length: 4, MinLowercase: intPtr(4),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GeneratePassword(tt.req)
			if ClassOf(err) != ErrorClassInvalidRequest {
				t.Errorf("GeneratePassword() error = %v, want invalid request", err)
			}
		})
	}
}
