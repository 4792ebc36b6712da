package chunkdrive

import (
	"bytes"
	"testing"
)

func TestNoneCipherIsIdentity(t *testing.T) {
	c := NoneCipher{}
	data := []byte("plaintext")
	ct, err := c.Encrypt(data, nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.Equal(ct, data) {
		t.Fatalf("expected identity, got %q", ct)
	}
	pt, err := c.Decrypt(ct, nil)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, data) {
		t.Fatalf("got %q", pt)
	}
}

func TestAESCBCEncryptDecryptRoundtrip(t *testing.T) {
	for _, bits := range []int{128, 192, 256} {
		c, err := NewAESCBCCipher("a passphrase", bits)
		if err != nil {
			t.Fatalf("bits=%d: new cipher: %v", bits, err)
		}
		descriptor := []byte("some-descriptor-bytes")
		iv := DeriveIV(descriptor, c.IVSize())

		plaintext := []byte("the quick brown fox jumps over the lazy dog")
		ct, err := c.Encrypt(plaintext, iv)
		if err != nil {
			t.Fatalf("bits=%d: encrypt: %v", bits, err)
		}
		if bytes.Equal(ct, plaintext) {
			t.Fatalf("bits=%d: ciphertext equals plaintext", bits)
		}
		pt, err := c.Decrypt(ct, iv)
		if err != nil {
			t.Fatalf("bits=%d: decrypt: %v", bits, err)
		}
		if !bytes.Equal(pt, plaintext) {
			t.Fatalf("bits=%d: got %q, want %q", bits, pt, plaintext)
		}
	}
}

func TestAESCBCSameDescriptorSamePlaintextSameCiphertext(t *testing.T) {
	c, err := NewAESCBCCipher("passphrase", 128)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	descriptor := []byte("fixed-descriptor")
	iv1 := DeriveIV(descriptor, c.IVSize())
	iv2 := DeriveIV(descriptor, c.IVSize())
	if !bytes.Equal(iv1, iv2) {
		t.Fatalf("expected deterministic IV derivation")
	}

	plaintext := []byte("repeat me")
	ct1, _ := c.Encrypt(plaintext, iv1)
	ct2, _ := c.Encrypt(plaintext, iv2)
	if !bytes.Equal(ct1, ct2) {
		t.Fatalf("expected identical ciphertext for identical (plaintext, descriptor)")
	}
}

func TestAESCBCPostEncryptionMax(t *testing.T) {
	c, err := NewAESCBCCipher("passphrase", 128)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if got := c.PostEncryptionMax(32); got != 16 {
		t.Fatalf("got %d, want 16", got)
	}
}

func TestUnsupportedAESKeySizeRejected(t *testing.T) {
	if _, err := NewAESCBCCipher("x", 100); err == nil {
		t.Fatalf("expected unsupported key size to be rejected")
	}
}
