package crypto

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func hexToHash(t *testing.T, s string) types.Hash {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	var h types.Hash
	copy(h[:], b)
	return h
}

func TestBlake3(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blake3(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("Blake3(%q) = %x, want %x", tt.input, got, want)
			}
		})
	}
}

func TestSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SHA256(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("SHA256(%q) = %x, want %x", tt.input, got, want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	data := []byte("state")

	sha, err := Sum(types.SHA256, data)
	if err != nil {
		t.Fatalf("Sum(SHA256) error: %v", err)
	}
	if sha.Algorithm != types.SHA256 || sha.Digest != SHA256(data) {
		t.Errorf("Sum(SHA256) = %v", sha)
	}

	b3, err := Sum(types.BLAKE3, data)
	if err != nil {
		t.Fatalf("Sum(BLAKE3) error: %v", err)
	}
	if b3.Algorithm != types.BLAKE3 || b3.Digest != Blake3(data) {
		t.Errorf("Sum(BLAKE3) = %v", b3)
	}

	if _, err := Sum(types.HashAlgorithm(0x7f), data); !errors.Is(err, ErrUnsupportedHash) {
		t.Errorf("Sum(unknown) = %v, want ErrUnsupportedHash", err)
	}
}

func TestHash_DifferentInputs(t *testing.T) {
	h1 := SHA256([]byte("input A"))
	h2 := SHA256([]byte("input B"))
	if h1 == h2 {
		t.Error("different inputs produced the same hash")
	}
}

func TestHashConcat(t *testing.T) {
	a := Blake3([]byte("left"))
	b := Blake3([]byte("right"))
	result := HashConcat(a, b)

	if result == (types.Hash{}) {
		t.Error("HashConcat returned zero hash")
	}

	// Order matters
	reversed := HashConcat(b, a)
	if result == reversed {
		t.Error("HashConcat(a,b) should differ from HashConcat(b,a)")
	}

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	if want := Blake3(buf[:]); result != want {
		t.Errorf("HashConcat = %x, want %x", result, want)
	}
}
