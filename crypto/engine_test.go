package crypto

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

func testParams() util.Argon2idParams {
	// Fast parameters so tests don't pay the full derivation cost.
	return util.Argon2idParams{Time: 1, MemoryKiB: 16, Parallelism: 1, KeyLen: 32}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	raw, err := util.RandomBytes(MasterKeySize)
	if err != nil {
		t.Fatalf("generating master key: %v", err)
	}
	e, err := NewEngine(util.HexEncode(raw), WithKDFParams(testParams()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEngine_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	plain := []byte(`{"creds":"noise-keypair"}`)

	env, err := e.Encrypt(plain, "session", []byte("sid-1"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if env.Scheme != "aes256gcm" || env.SchemaVersion != 1 {
		t.Errorf("unexpected envelope header: %s v%d", env.Scheme, env.SchemaVersion)
	}

	got, err := e.Decrypt(env, "session")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(plain, got) {
		t.Errorf("expected %q, got %q", plain, got)
	}
}

func TestEngine_FreshSaltPerCall(t *testing.T) {
	e := newTestEngine(t)
	plain := []byte("same plaintext")

	env1, err := e.Encrypt(plain, "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	env2, err := e.Encrypt(plain, "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(env1.Salt, env2.Salt) {
		t.Error("two encryptions reused a salt")
	}
	if bytes.Equal(env1.Ciphertext, env2.Ciphertext) {
		t.Error("two encryptions of the same plaintext are comparable")
	}
}

func TestEngine_WrongPurpose(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.Encrypt([]byte("data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := e.Decrypt(env, "backup"); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption for cross-purpose decrypt, got %v", err)
	}
}

func TestEngine_BitFlips(t *testing.T) {
	e := newTestEngine(t)
	plain := []byte("flip every byte and watch it fail")
	env, err := e.Encrypt(plain, "session", []byte("aad"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	clone := func() *Envelope {
		cp := *env
		cp.IV = util.CopyBytes(env.IV)
		cp.Salt = util.CopyBytes(env.Salt)
		cp.Ciphertext = util.CopyBytes(env.Ciphertext)
		cp.Tag = util.CopyBytes(env.Tag)
		cp.AAD = util.CopyBytes(env.AAD)
		cp.Digest = util.CopyBytes(env.Digest)
		return &cp
	}

	t.Run("Ciphertext", func(t *testing.T) {
		for i := range env.Ciphertext {
			mut := clone()
			mut.Ciphertext[i] ^= 0x01
			if _, err := e.Decrypt(mut, "session"); err == nil {
				t.Fatalf("flipping ciphertext byte %d did not fail decryption", i)
			}
		}
	})

	t.Run("Digest", func(t *testing.T) {
		mut := clone()
		mut.Digest[0] ^= 0x01
		if _, err := e.Decrypt(mut, "session"); !errors.Is(err, ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})

	t.Run("Tag", func(t *testing.T) {
		mut := clone()
		mut.Tag[0] ^= 0x01
		if _, err := e.Decrypt(mut, "session"); err == nil {
			t.Error("flipped tag did not fail decryption")
		}
	})
}

func TestEngine_DigestRejectedBeforeDecryption(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.Encrypt([]byte("data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Alter ciphertext without recomputing the digest: the digest check
	// must trip first.
	env.Ciphertext[0] ^= 0x01
	if _, err := e.Decrypt(env, "session"); !errors.Is(err, ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
}

func TestEngine_Rotate(t *testing.T) {
	e := newTestEngine(t)

	env, err := e.Encrypt([]byte("old-key data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	v1 := e.KeyVersion()

	raw, _ := util.RandomBytes(MasterKeySize)
	if err := e.Rotate(util.HexEncode(raw)); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if e.KeyVersion() != v1+1 {
		t.Errorf("expected key version %d, got %d", v1+1, e.KeyVersion())
	}

	// Envelopes written before the rotation decrypt under their original
	// key version.
	got, err := e.DecryptVersion(env, "session", v1)
	if err != nil {
		t.Fatalf("DecryptVersion failed after rotation: %v", err)
	}
	if !bytes.Equal(got, []byte("old-key data")) {
		t.Errorf("unexpected plaintext %q", got)
	}

	// The current version no longer opens them.
	if _, err := e.Decrypt(env, "session"); err == nil {
		t.Error("expected decryption under rotated key to fail")
	}

	// New envelopes use the new version.
	env2, err := e.Encrypt([]byte("new-key data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := e.Decrypt(env2, "session"); err != nil {
		t.Fatalf("Decrypt under new key failed: %v", err)
	}
}

func TestEngine_UnknownKeyVersion(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.Encrypt([]byte("data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := e.DecryptVersion(env, "session", 99); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Errorf("expected ErrUnknownKeyVersion, got %v", err)
	}
}

func TestEngine_CacheEviction(t *testing.T) {
	raw, _ := util.RandomBytes(MasterKeySize)
	e, err := NewEngine(util.HexEncode(raw),
		WithKDFParams(testParams()),
		WithEvictionInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	env, err := e.Encrypt([]byte("data"), "session", nil)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	e.mu.RLock()
	cached := len(e.cache)
	e.mu.RUnlock()
	if cached != 0 {
		t.Errorf("expected empty cache after eviction, got %d entries", cached)
	}

	// Eviction only drops cached keys; decryption re-derives.
	if _, err := e.Decrypt(env, "session"); err != nil {
		t.Fatalf("Decrypt after eviction failed: %v", err)
	}
}

func TestParseMasterKey(t *testing.T) {
	if _, err := ParseMasterKey(""); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := ParseMasterKey("zz"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := ParseMasterKey("deadbeef"); err == nil {
		t.Error("expected error for short key")
	}
	raw, _ := util.RandomBytes(MasterKeySize)
	if _, err := ParseMasterKey(util.HexEncode(raw)); err != nil {
		t.Errorf("expected valid key to parse, got %v", err)
	}
}
