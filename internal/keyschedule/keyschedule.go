// Package keyschedule wraps and unwraps the per-file content encryption
// key (CEK) under each recipient's key-encryption key (KEK), using
// AES-256-GCM the way original_source/crates/qsfs-core/src/derivation.rs's
// wrap_dek/unwrap_dek do. It sits between internal/pq (which produces the
// KEM shared secret feeding a KEK) and internal/header (which only knows
// about opaque wrapped-CEK byte blobs on the wire).
package keyschedule

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

const (
	// WrapNonceSize is the size of the AES-256-GCM nonce used to wrap a CEK.
	WrapNonceSize = 12
	// CEKSize is the size of a content encryption key in bytes.
	CEKSize = 32
	// WrappedCEKSize is CEKSize plus the AES-256-GCM authentication tag.
	WrappedCEKSize = CEKSize + 16
)

// GenerateCEK returns a fresh random 32-byte content encryption key.
func GenerateCEK() (*secretbuf.Buffer, error) {
	cek := secretbuf.New(CEKSize)
	if _, err := io.ReadFull(rand.Reader, cek.Bytes()); err != nil {
		cek.Close()
		return nil, fmt.Errorf("keyschedule: generate CEK: %w", err)
	}
	return cek, nil
}

// WrapCEK encrypts cek under kek with a fresh random nonce, returning the
// nonce alongside the 48-byte sealed output (wrapped_dek is always exactly
// a 32-byte CEK plus a 16-byte tag). AAD is empty, matching the original
// implementation's wrap_dek.
func WrapCEK(kek, cek *secretbuf.Buffer) (nonce [WrapNonceSize]byte, wrapped []byte, err error) {
	if kek.Len() != 32 {
		return nonce, nil, fmt.Errorf("keyschedule: KEK must be 32 bytes, got %d", kek.Len())
	}
	if cek.Len() != CEKSize {
		return nonce, nil, fmt.Errorf("keyschedule: CEK must be %d bytes, got %d", CEKSize, cek.Len())
	}
	block, err := aes.NewCipher(kek.Bytes())
	if err != nil {
		return nonce, nil, fmt.Errorf("keyschedule: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nonce, nil, fmt.Errorf("keyschedule: new GCM: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("keyschedule: read wrap nonce: %w", err)
	}
	wrapped = gcm.Seal(nil, nonce[:], cek.Bytes(), nil)
	return nonce, wrapped, nil
}

// UnwrapCEK decrypts a wrapped CEK under kek, returning AuthenticationFailed
// semantics to the caller via a plain error on tag mismatch. The caller
// (the recipient-entry search loop in unseal.go) treats that identically to
// "this entry was not ours" and moves on to the next recipient entry.
func UnwrapCEK(kek *secretbuf.Buffer, nonce [WrapNonceSize]byte, wrapped []byte) (*secretbuf.Buffer, error) {
	if kek.Len() != 32 {
		return nil, fmt.Errorf("keyschedule: KEK must be 32 bytes, got %d", kek.Len())
	}
	if len(wrapped) != WrappedCEKSize {
		return nil, fmt.Errorf("keyschedule: wrapped CEK must be %d bytes, got %d", WrappedCEKSize, len(wrapped))
	}
	block, err := aes.NewCipher(kek.Bytes())
	if err != nil {
		return nil, fmt.Errorf("keyschedule: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyschedule: new GCM: %w", err)
	}
	plain, err := gcm.Open(nil, nonce[:], wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("keyschedule: unwrap CEK: %w", err)
	}
	return secretbuf.NewFromBytes(plain), nil
}
