package keyschedule

import (
	"bytes"
	"testing"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	kek := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x7a}, 32))
	defer kek.Close()
	cek, err := GenerateCEK()
	if err != nil {
		t.Fatal(err)
	}
	defer cek.Close()

	nonce, wrapped, err := WrapCEK(kek, cek)
	if err != nil {
		t.Fatalf("WrapCEK() error = %v", err)
	}
	if len(wrapped) != WrappedCEKSize {
		t.Fatalf("wrapped length = %d, want %d", len(wrapped), WrappedCEKSize)
	}

	unwrapped, err := UnwrapCEK(kek, nonce, wrapped)
	if err != nil {
		t.Fatalf("UnwrapCEK() error = %v", err)
	}
	defer unwrapped.Close()

	if !bytes.Equal(unwrapped.Bytes(), cek.Bytes()) {
		t.Error("unwrapped CEK does not match original")
	}
}

func TestUnwrapWrongKeyFails(t *testing.T) {
	kek1 := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x01}, 32))
	defer kek1.Close()
	kek2 := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x02}, 32))
	defer kek2.Close()
	cek, err := GenerateCEK()
	if err != nil {
		t.Fatal(err)
	}
	defer cek.Close()

	nonce, wrapped, err := WrapCEK(kek1, cek)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := UnwrapCEK(kek2, nonce, wrapped); err == nil {
		t.Error("UnwrapCEK() succeeded under the wrong KEK")
	}
}

func TestUnwrapTamperedCiphertextFails(t *testing.T) {
	kek := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x03}, 32))
	defer kek.Close()
	cek, err := GenerateCEK()
	if err != nil {
		t.Fatal(err)
	}
	defer cek.Close()

	nonce, wrapped, err := WrapCEK(kek, cek)
	if err != nil {
		t.Fatal(err)
	}
	wrapped[0] ^= 0xff

	if _, err := UnwrapCEK(kek, nonce, wrapped); err == nil {
		t.Error("UnwrapCEK() accepted tampered ciphertext")
	}
}
