package identity

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func TestKeystore_CreateAndSeed(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	password := []byte("test-password")

	if err := ks.Create("alice", seed, password, LightKDFParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	loaded, err := ks.Seed("alice", password)
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed does not match original")
	}
}

func TestKeystore_Identity(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	password := []byte("pw")
	if err := ks.Create("alice", seed, password, LightKDFParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	id, err := ks.Identity("alice", password, 0)
	if err != nil {
		t.Fatalf("Identity() error: %v", err)
	}
	want, _ := FromSeed(seed)
	if !bytes.Equal(id.Secret, want.Secret) || !bytes.Equal(id.Nonce, want.Nonce) {
		t.Error("keystore identity should match seed split")
	}
}

func TestKeystore_WrongPassword(t *testing.T) {
	ks := testKeystore(t)
	if err := ks.Create("alice", testSeed(t), []byte("right"), LightKDFParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := ks.Seed("alice", []byte("wrong")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Seed(wrong password) = %v, want ErrWrongPassword", err)
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	if err := ks.Create("dup", seed, []byte("p"), LightKDFParams()); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
	if err := ks.Create("dup", seed, []byte("p"), LightKDFParams()); !errors.Is(err, ErrIdentityExists) {
		t.Errorf("duplicate Create() = %v, want ErrIdentityExists", err)
	}
}

func TestKeystore_InvalidName(t *testing.T) {
	ks := testKeystore(t)
	for _, name := range []string{"", "../escape", "a/b"} {
		if err := ks.Create(name, testSeed(t), []byte("p"), LightKDFParams()); err == nil {
			t.Errorf("Create(%q) should fail", name)
		}
	}
}

func TestKeystore_ListAndDelete(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	for _, n := range []string{"bob", "alice"} {
		if err := ks.Create(n, seed, []byte("p"), LightKDFParams()); err != nil {
			t.Fatalf("Create(%s) error: %v", n, err)
		}
	}
	// Unrelated files are ignored.
	os.WriteFile(filepath.Join(ks.dir, "notes.txt"), []byte("x"), 0600)

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("List() = %v, want [alice bob]", names)
	}

	if err := ks.Delete("bob"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := ks.Delete("bob"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("second Delete() = %v, want ErrIdentityNotFound", err)
	}
	if _, err := ks.Seed("bob", []byte("p")); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("Seed(deleted) = %v, want ErrIdentityNotFound", err)
	}
}

func TestKeystore_Accounts(t *testing.T) {
	ks := testKeystore(t)
	if err := ks.Create("alice", testSeed(t), []byte("p"), LightKDFParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	acct := AccountEntry{Index: 1, Label: "savings", PublicKey: "02ab"}
	if err := ks.AddAccount("alice", acct); err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}
	if err := ks.AddAccount("alice", acct); err != nil {
		t.Errorf("idempotent AddAccount() error: %v", err)
	}
	if err := ks.AddAccount("alice", AccountEntry{Index: 1, PublicKey: "03cd"}); err == nil {
		t.Error("conflicting AddAccount() should fail")
	}

	accts, err := ks.Accounts("alice")
	if err != nil {
		t.Fatalf("Accounts() error: %v", err)
	}
	if len(accts) != 1 || accts[0] != acct {
		t.Errorf("Accounts() = %+v, want [%+v]", accts, acct)
	}
}

func TestSealOpen_Tamper(t *testing.T) {
	sealed, err := seal([]byte("seed bytes"), []byte("pw"), LightKDFParams())
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	plain, err := open(sealed, []byte("pw"))
	if err != nil {
		t.Fatalf("open() error: %v", err)
	}
	if string(plain) != "seed bytes" {
		t.Errorf("open() = %q", plain)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[kdfSaltSize] ^= 0x01 // memory parameter
	if _, err := open(tampered, []byte("pw")); err == nil {
		t.Error("tampered header should fail")
	}

	if _, err := open(sealed[:10], []byte("pw")); err == nil {
		t.Error("truncated data should fail")
	}
}
