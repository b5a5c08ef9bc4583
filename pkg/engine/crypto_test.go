package engine

import (
	"bytes"
	"context"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := newSealer(bytes.Repeat([]byte{7}, keySize))
	if err != nil {
		t.Fatal(err)
	}

	ct, err := s.seal("hunter2", []byte("row-1"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(ct, []byte("hunter2")) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := s.open(ct, []byte("row-1"))
	if err != nil || got != "hunter2" {
		t.Fatalf("open() = %q, %v", got, err)
	}
	if _, err := s.open(ct, []byte("row-2")); err == nil {
		t.Error("ciphertext must not open under different additional data")
	}
	if _, err := s.open(ct[:nonceSize], nil); err == nil {
		t.Error("short ciphertext must fail")
	}

	empty, err := s.seal("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != nonceSize+tagSize {
		t.Errorf("sealed empty string length = %d", len(empty))
	}
}

func TestNewSealerKeySize(t *testing.T) {
	if _, err := newSealer(make([]byte, 16)); err == nil {
		t.Error("expected error for a 16 byte key")
	}
}

func TestOpenSealerPersistsParams(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := openSealer(ctx, store, "pass", testKDF)
	if err != nil {
		t.Fatal(err)
	}
	ct, _ := first.seal("v", nil)

	// Parameters recorded at initialization win over later configuration.
	second, err := openSealer(ctx, store, "pass", DefaultKDFParams())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got, err := second.open(ct, nil); err != nil || got != "v" {
		t.Errorf("reopened sealer open() = %q, %v", got, err)
	}

	if _, err := openSealer(ctx, store, "other", testKDF); err != ErrWrongPassphrase {
		t.Errorf("wrong passphrase error = %v", err)
	}
}
