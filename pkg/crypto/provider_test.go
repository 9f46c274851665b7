package crypto

import (
	"bytes"
	"testing"
)

func TestSecp256k1Provider_DeriveKeyPair(t *testing.T) {
	var p Secp256k1Provider
	secret := bytes.Repeat([]byte{0x11}, 32)
	nonceA := bytes.Repeat([]byte{0x01}, 32)
	nonceB := bytes.Repeat([]byte{0x02}, 32)

	k1, err := p.DeriveKeyPair(secret, nonceA)
	if err != nil {
		t.Fatalf("DeriveKeyPair() error: %v", err)
	}
	k2, err := p.DeriveKeyPair(secret, nonceA)
	if err != nil {
		t.Fatalf("DeriveKeyPair() error: %v", err)
	}
	if !bytes.Equal(k1.PublicKey(), k2.PublicKey()) {
		t.Error("same inputs should derive the same key")
	}

	k3, err := p.DeriveKeyPair(secret, nonceB)
	if err != nil {
		t.Fatalf("DeriveKeyPair() error: %v", err)
	}
	if bytes.Equal(k1.PublicKey(), k3.PublicKey()) {
		t.Error("different nonces should derive different keys")
	}

	scalar := SHA256(append(append([]byte{}, secret...), nonceA...))
	if !bytes.Equal(k1.Serialize(), scalar[:]) {
		t.Error("derived scalar should be SHA256(secret || nonce)")
	}

	if _, err := p.DeriveKeyPair(nil, nonceA); err == nil {
		t.Error("empty secret should fail")
	}
}

func TestSecp256k1Provider_SignVerify(t *testing.T) {
	var p Secp256k1Provider
	key, err := p.DeriveKeyPair([]byte("secret"), nil)
	if err != nil {
		t.Fatalf("DeriveKeyPair() error: %v", err)
	}
	digest := SHA256([]byte("payload"))
	sig, err := p.Sign(key, digest[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	v, err := VerifierFor(p.Algorithm())
	if err != nil {
		t.Fatalf("VerifierFor() error: %v", err)
	}
	if !v.Verify(digest[:], sig, key.PublicKey()) {
		t.Error("provider signature should verify")
	}
}

var _ Provider = Secp256k1Provider{}
