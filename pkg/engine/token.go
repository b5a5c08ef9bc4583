package engine

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenVersion = "0"
	clientSecretLength = 30
	tokenKeyBytes      = 16

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// AccessToken is the parsed form of 0.<id>.<client secret>:<key>.
type AccessToken struct {
	ID           uuid.UUID
	ClientSecret string
	Key          string
}

// ParseAccessToken parses a machine access token.
func ParseAccessToken(s string) (AccessToken, error) {
	head, key, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return AccessToken{}, errInvalidToken
	}
	parts := strings.SplitN(head, ".", 3)
	if len(parts) != 3 || parts[0] != accessTokenVersion || parts[2] == "" {
		return AccessToken{}, errInvalidToken
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return AccessToken{}, errInvalidToken
	}
	if _, err := base64.StdEncoding.DecodeString(key); err != nil {
		return AccessToken{}, errInvalidToken
	}
	return AccessToken{ID: id, ClientSecret: parts[2], Key: key}, nil
}

// String formats the token.
func (t AccessToken) String() string {
	return fmt.Sprintf("%s.%s.%s:%s", accessTokenVersion, t.ID, t.ClientSecret, t.Key)
}

// credential is what the stored bcrypt hash covers.
func (t AccessToken) credential() []byte {
	return []byte(t.ClientSecret + ":" + t.Key)
}

// fingerprint identifies the credential in session state files.
func (t AccessToken) fingerprint() []byte {
	sum := sha256.Sum256(t.credential())
	return sum[:]
}

func newAccessToken(id uuid.UUID) (AccessToken, error) {
	secret, err := randomString(alphanumeric, clientSecretLength)
	if err != nil {
		return AccessToken{}, err
	}
	key := make([]byte, tokenKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return AccessToken{}, fmt.Errorf("failed to generate token key: %w", err)
	}
	return AccessToken{ID: id, ClientSecret: secret, Key: base64.StdEncoding.EncodeToString(key)}, nil
}

func hashCredential(t AccessToken, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(t.credential(), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash access token: %w", err)
	}
	return hash, nil
}

func verifyCredential(hash []byte, t AccessToken) bool {
	return bcrypt.CompareHashAndPassword(hash, t.credential()) == nil
}

// randomString draws n characters uniformly from alphabet.
func randomString(alphabet string, n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		c, err := randomIndex(len(alphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[c])
	}
	return b.String(), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random number: %w", err)
	}
	return int(v.Int64()), nil
}
