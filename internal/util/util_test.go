package util

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptAESGCM(t *testing.T) {
	key, err := NewAESKey()
	if err != nil {
		t.Fatalf("NewAESKey failed: %v", err)
	}
	plain := []byte("credential payload")
	aad := []byte("context")

	iv, ct, tag, err := EncryptAESGCM(plain, key, aad)
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	if len(iv) != GCMIVLength {
		t.Errorf("expected %d-byte IV, got %d", GCMIVLength, len(iv))
	}
	if len(tag) != GCMTagSize {
		t.Errorf("expected %d-byte tag, got %d", GCMTagSize, len(tag))
	}

	got, err := DecryptAESGCM(iv, ct, tag, key, aad)
	if err != nil {
		t.Fatalf("DecryptAESGCM failed: %v", err)
	}
	if !bytes.Equal(plain, got) {
		t.Errorf("expected %q, got %q", plain, got)
	}

	t.Run("WrongAAD", func(t *testing.T) {
		if _, err := DecryptAESGCM(iv, ct, tag, key, []byte("other")); err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := NewAESKey()
		if _, err := DecryptAESGCM(iv, ct, tag, wrongKey, aad); err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("TamperedTag", func(t *testing.T) {
		badTag := CopyBytes(tag)
		badTag[0] ^= 0x01
		if _, err := DecryptAESGCM(iv, ct, badTag, key, aad); err == nil {
			t.Error("expected error with tampered tag, got nil")
		}
	})

	t.Run("ShortKey", func(t *testing.T) {
		if _, _, _, err := EncryptAESGCM(plain, key[:16], aad); err == nil {
			t.Error("expected error with short key, got nil")
		}
	})
}

func TestDeriveArgon2idKey(t *testing.T) {
	params := DefaultArgon2idParams()
	salt, _ := RandomBytes(16)

	k1, err := DeriveArgon2idKey([]byte("secret"), salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	k2, err := DeriveArgon2idKey([]byte("secret"), salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic for same salt")
	}

	otherSalt, _ := RandomBytes(16)
	k3, _ := DeriveArgon2idKey([]byte("secret"), otherSalt, params)
	if bytes.Equal(k1, k3) {
		t.Error("different salts produced identical keys")
	}

	if _, err := DeriveArgon2idKey([]byte("secret"), nil, params); err == nil {
		t.Error("expected error with empty salt, got nil")
	}
}

func TestHKDF(t *testing.T) {
	salt, _ := RandomBytes(16)

	k1, err := HKDF([]byte("secret"), salt, []byte("scanner:purpose:session"))
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	if len(k1) != HKDFKeyLength {
		t.Errorf("expected %d-byte key, got %d", HKDFKeyLength, len(k1))
	}

	k2, _ := HKDF([]byte("secret"), salt, []byte("scanner:purpose:session"))
	if !bytes.Equal(k1, k2) {
		t.Error("expansion is not deterministic for same inputs")
	}

	k3, _ := HKDF([]byte("secret"), salt, []byte("scanner:purpose:backup"))
	if bytes.Equal(k1, k3) {
		t.Error("different infos produced identical keys")
	}
}

func TestRandomAlnum(t *testing.T) {
	s, err := RandomAlnum(12)
	if err != nil {
		t.Fatalf("RandomAlnum failed: %v", err)
	}
	if len(s) != 12 {
		t.Errorf("expected 12 chars, got %d", len(s))
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Errorf("unexpected character %q", r)
		}
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("expected zeroed slice, got %v", b)
	}
}
