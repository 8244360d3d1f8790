package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail: ok=%v err=%v", ok, err)
	}
}

func TestHashEmptyPassword(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash(""); err != ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2(weak) error: %v", err)
	}
	hash, err := weak.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong, err := NewArgon2(DefaultConfig())
	if err != nil {
		t.Fatalf("NewArgon2(default) error: %v", err)
	}
	if !strong.NeedsRehash(hash) {
		t.Fatal("expected weaker parameters to need a rehash")
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("expected current parameters to be accepted")
	}
	if !weak.NeedsRehash("$2a$10$abcdefghijklmnopqrstuv") {
		t.Fatal("expected foreign algorithm to need a rehash")
	}
}

func TestVerifyMalformedHashes(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	for _, bad := range []string{
		"not-a-phc-hash",
		strings.Replace(hash, "$v=19$", "$v=18$", 1),
		strings.Replace(hash, "m=8192", "m=1", 1),
		strings.Replace(hash, "$argon2id$", "$argon2i$", 1),
	} {
		if _, err := hasher.Verify("version-test", bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}

	cfg = testConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
}

func TestChainVerifiesBcryptAndArgon2(t *testing.T) {
	chain, err := NewChain(testConfig())
	if err != nil {
		t.Fatalf("NewChain error: %v", err)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("imported-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := chain.Verify("imported-secret", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt hash to verify: ok=%v err=%v", ok, err)
	}
	ok, err = chain.Verify("wrong", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch: ok=%v err=%v", ok, err)
	}
	if !chain.NeedsRehash(string(legacy)) {
		t.Fatal("expected bcrypt hash to need upgrade")
	}

	fresh, err := chain.Hash("new-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err = chain.Verify("new-secret", fresh)
	if err != nil || !ok {
		t.Fatalf("expected argon2 hash to verify: ok=%v err=%v", ok, err)
	}

	if _, err := chain.Verify("x", "plaintext"); err != ErrUnknownHash {
		t.Fatalf("expected ErrUnknownHash, got %v", err)
	}
}
