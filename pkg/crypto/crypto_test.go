package crypto

import (
	"bytes"
	"testing"
)

func TestUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		want     string
	}{
		{
			name:     "known digest",
			password: "hunter2",
			want:     "Playerf52fbd32", // SHA-256("hunter2") = f52fbd32...
		},
		{
			name:     "empty password",
			password: "",
			want:     "Playere3b0c442", // SHA-256 of the empty string
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Username(tc.password)
			if got != tc.want {
				t.Errorf("Username(%q) = %q, want %q", tc.password, got, tc.want)
			}
		})
	}
}

func TestNewAEAD_SealOpen(t *testing.T) {
	t.Parallel()

	aead, err := NewAEAD("hunter2")
	if err != nil {
		t.Fatalf("NewAEAD(): %s", err)
	}

	if aead.NonceSize() != NonceSize {
		t.Errorf("NonceSize() = %d, want %d", aead.NonceSize(), NonceSize)
	}
	if aead.Overhead() != TagSize {
		t.Errorf("Overhead() = %d, want %d", aead.Overhead(), TagSize)
	}

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce(): %s", err)
	}

	plaintext := []byte("application bytes")
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	if len(sealed) != len(plaintext)+TagSize {
		t.Errorf("sealed length = %d, want %d", len(sealed), len(plaintext)+TagSize)
	}

	opened, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		t.Fatalf("Open(): %s", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestNewAEAD_WrongKeyFails(t *testing.T) {
	t.Parallel()

	a1, err := NewAEAD("hunter2")
	if err != nil {
		t.Fatalf("NewAEAD(): %s", err)
	}
	a2, err := NewAEAD("hunter3")
	if err != nil {
		t.Fatalf("NewAEAD(): %s", err)
	}

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce(): %s", err)
	}

	sealed := a1.Seal(nil, nonce, []byte("secret"), nil)
	if _, err := a2.Open(nil, nonce, sealed, nil); err == nil {
		t.Error("Open() with the wrong key succeeded")
	}
}

func TestNewNonce_Distinct(t *testing.T) {
	t.Parallel()

	n1, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce(): %s", err)
	}
	n2, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce(): %s", err)
	}

	if len(n1) != NonceSize {
		t.Errorf("nonce length = %d, want %d", len(n1), NonceSize)
	}
	if bytes.Equal(n1, n2) {
		t.Error("two fresh nonces were identical")
	}
}
