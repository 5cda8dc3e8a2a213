// Package pq wraps the post-quantum and classical primitives QSFS builds
// on: ML-KEM-1024 encapsulation, ML-DSA-87 signatures, and X25519 for the
// hybrid combiner. It generalizes vaultsandbox-client-go's
// internal/crypto.Keypair (ML-KEM-768) to ML-KEM-1024, keeping the same
// shape: raw public/secret key bytes and a Decapsulate method. Unlike the
// ML-KEM-768 teacher code, a keypair here is reconstructed from its public
// and secret key bytes together (see NewMLKEMKeypairFromBytes) rather than
// from the secret key alone.
package pq

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

const (
	// MLKEMPublicKeySize is the size of an ML-KEM-1024 public key in bytes.
	MLKEMPublicKeySize = mlkem1024.PublicKeySize
	// MLKEMSecretKeySize is the size of an ML-KEM-1024 secret key in bytes.
	MLKEMSecretKeySize = mlkem1024.PrivateKeySize
	// MLKEMCiphertextSize is the size of an ML-KEM-1024 ciphertext, and
	// thus the required size of RecipientEntry.mlkem_ct.
	MLKEMCiphertextSize = mlkem1024.CiphertextSize
	// MLKEMSharedSecretSize is the size of the KEM shared secret in bytes.
	MLKEMSharedSecretSize = mlkem1024.SharedKeySize
)

// randReader is the randomness source for key generation and
// encapsulation. Overridable for deterministic tests via
// SetRandReaderForTesting, mirroring vaultsandbox's internal/crypto/testing.go.
var randReader io.Reader = rand.Reader

// SetRandReaderForTesting overrides the random source and returns a
// function that restores the previous one. Test-only.
func SetRandReaderForTesting(r io.Reader) func() {
	prev := randReader
	randReader = r
	return func() { randReader = prev }
}

// MLKEMKeypair is an ML-KEM-1024 keypair.
type MLKEMKeypair struct {
	PublicKey []byte
	SecretKey *secretbuf.Buffer
}

// GenerateMLKEMKeypair creates a new ML-KEM-1024 keypair.
func GenerateMLKEMKeypair() (*MLKEMKeypair, error) {
	pub, priv, err := mlkem1024.GenerateKeyPair(randReader)
	if err != nil {
		return nil, fmt.Errorf("pq: generate ML-KEM-1024 keypair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pq: marshal ML-KEM-1024 public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pq: marshal ML-KEM-1024 secret key: %w", err)
	}
	return &MLKEMKeypair{PublicKey: pubBytes, SecretKey: secretbuf.NewFromBytes(privBytes)}, nil
}

// NewMLKEMKeypairFromBytes reconstructs a keypair from raw public and
// secret key bytes read back from key files on disk. Keys are stored in
// separate files (jrick-ss's keyfile layout: one ".public", one ".secret"),
// so reconstruction always has both halves in hand rather than needing to
// recover the public key from an embedded offset.
func NewMLKEMKeypairFromBytes(publicKey, secretKey []byte) (*MLKEMKeypair, error) {
	if len(publicKey) != MLKEMPublicKeySize {
		return nil, fmt.Errorf("pq: ML-KEM-1024 public key is %d bytes, want %d", len(publicKey), MLKEMPublicKeySize)
	}
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, fmt.Errorf("pq: ML-KEM-1024 secret key is %d bytes, want %d", len(secretKey), MLKEMSecretKeySize)
	}
	var pk mlkem1024.PublicKey
	if err := pk.Unpack(publicKey); err != nil {
		return nil, fmt.Errorf("pq: unpack ML-KEM-1024 public key: %w", err)
	}
	var sk mlkem1024.PrivateKey
	if err := sk.Unpack(secretKey); err != nil {
		return nil, fmt.Errorf("pq: unpack ML-KEM-1024 secret key: %w", err)
	}
	pubCopy := make([]byte, len(publicKey))
	copy(pubCopy, publicKey)
	skCopy := make([]byte, len(secretKey))
	copy(skCopy, secretKey)
	return &MLKEMKeypair{PublicKey: pubCopy, SecretKey: secretbuf.NewFromBytes(skCopy)}, nil
}

// MLKEMEncapsulate encapsulates a fresh shared secret to pubKey, returning
// the ciphertext to place in RecipientEntry.mlkem_ct and the shared secret
// (owned by the caller; the caller must Close it).
func MLKEMEncapsulate(pubKey []byte) (ciphertext []byte, sharedSecret *secretbuf.Buffer, err error) {
	if len(pubKey) != MLKEMPublicKeySize {
		return nil, nil, fmt.Errorf("pq: ML-KEM-1024 public key is %d bytes, want %d", len(pubKey), MLKEMPublicKeySize)
	}
	var pk mlkem1024.PublicKey
	if err := pk.Unpack(pubKey); err != nil {
		return nil, nil, fmt.Errorf("pq: unpack ML-KEM-1024 public key: %w", err)
	}

	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if _, err := io.ReadFull(randReader, seed); err != nil {
		return nil, nil, fmt.Errorf("pq: read encapsulation seed: %w", err)
	}

	ct := make([]byte, MLKEMCiphertextSize)
	ss := secretbuf.New(MLKEMSharedSecretSize)
	pk.EncapsulateTo(ct, ss.Bytes(), seed)
	return ct, ss, nil
}

// Decapsulate recovers the shared secret embedded in ciphertext using the
// keypair's secret key. ML-KEM-1024's implicit-rejection decapsulation
// never errors: on a malformed or mismatched ciphertext it returns a
// pseudorandom value indistinguishable from a genuine shared secret, which
// is exactly what lets Unseal's recipient search (unseal.go) try every
// recipient entry at constant cost without an oracle revealing which
// entry, if any, actually matches.
func (k *MLKEMKeypair) Decapsulate(ciphertext []byte) (*secretbuf.Buffer, error) {
	if len(ciphertext) != MLKEMCiphertextSize {
		return nil, fmt.Errorf("pq: ML-KEM-1024 ciphertext is %d bytes, want %d", len(ciphertext), MLKEMCiphertextSize)
	}
	var sk mlkem1024.PrivateKey
	if err := sk.Unpack(k.SecretKey.Bytes()); err != nil {
		return nil, fmt.Errorf("pq: unpack ML-KEM-1024 secret key: %w", err)
	}
	ss := secretbuf.New(MLKEMSharedSecretSize)
	sk.DecapsulateTo(ss.Bytes(), ciphertext)
	return ss, nil
}
