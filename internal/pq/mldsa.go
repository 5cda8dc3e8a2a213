// ML-DSA-87 signing and verification. vaultsandbox-client-go only ever
// verifies (its SDK checks a server-issued signature; it never signs), so
// the verify half here keeps that shape almost unchanged from
// internal/crypto/verify.go's mldsa65 usage. Signing is new: a QSFS signer
// produces headers, so GenerateMLDSAKeypair and Sign are added to complete
// the pair.
package pq

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

const (
	// MLDSAPublicKeySize is the size of an ML-DSA-87 public key in bytes.
	MLDSAPublicKeySize = mldsa87.PublicKeySize
	// MLDSASecretKeySize is the size of an ML-DSA-87 secret key in bytes.
	MLDSASecretKeySize = mldsa87.PrivateKeySize
	// MLDSASignatureSize is the size of an ML-DSA-87 signature in bytes.
	MLDSASignatureSize = mldsa87.SignatureSize
)

// MLDSAKeypair is an ML-DSA-87 keypair used by a header signer.
type MLDSAKeypair struct {
	PublicKey []byte
	SecretKey *secretbuf.Buffer
}

// GenerateMLDSAKeypair creates a new ML-DSA-87 signing keypair.
func GenerateMLDSAKeypair() (*MLDSAKeypair, error) {
	pub, priv, err := mldsa87.GenerateKey(randReader)
	if err != nil {
		return nil, fmt.Errorf("pq: generate ML-DSA-87 keypair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pq: marshal ML-DSA-87 public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pq: marshal ML-DSA-87 secret key: %w", err)
	}
	return &MLDSAKeypair{PublicKey: pubBytes, SecretKey: secretbuf.NewFromBytes(privBytes)}, nil
}

// NewMLDSAKeypairFromBytes reconstructs a signing keypair from raw public
// and secret key bytes, mirroring pq.NewMLKEMKeypairFromBytes.
func NewMLDSAKeypairFromBytes(publicKey, secretKey []byte) (*MLDSAKeypair, error) {
	if len(publicKey) != MLDSAPublicKeySize {
		return nil, fmt.Errorf("pq: ML-DSA-87 public key is %d bytes, want %d", len(publicKey), MLDSAPublicKeySize)
	}
	if len(secretKey) != MLDSASecretKeySize {
		return nil, fmt.Errorf("pq: ML-DSA-87 secret key is %d bytes, want %d", len(secretKey), MLDSASecretKeySize)
	}
	var pk mldsa87.PublicKey
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return nil, fmt.Errorf("pq: unmarshal ML-DSA-87 public key: %w", err)
	}
	var sk mldsa87.PrivateKey
	if err := sk.UnmarshalBinary(secretKey); err != nil {
		return nil, fmt.Errorf("pq: unmarshal ML-DSA-87 secret key: %w", err)
	}
	pubCopy := make([]byte, len(publicKey))
	copy(pubCopy, publicKey)
	skCopy := make([]byte, len(secretKey))
	copy(skCopy, secretKey)
	return &MLDSAKeypair{PublicKey: pubCopy, SecretKey: secretbuf.NewFromBytes(skCopy)}, nil
}

// Sign signs message (the canonical placeholder-form header encoding,
// internal/header's SigningInput) and returns the detached signature to
// place in Header.mldsa_sig.
func (k *MLDSAKeypair) Sign(message []byte) ([]byte, error) {
	var sk mldsa87.PrivateKey
	if err := sk.UnmarshalBinary(k.SecretKey.Bytes()); err != nil {
		return nil, fmt.Errorf("pq: unmarshal ML-DSA-87 secret key: %w", err)
	}
	sig := make([]byte, MLDSASignatureSize)
	mldsa87.SignTo(&sk, message, nil, false, sig)
	return sig, nil
}

// VerifyMLDSA checks sig over message under pubKey, in the same call shape
// vaultsandbox-client-go's transcript verification used for mldsa65: an
// unmarshal of the raw public key followed by a single Verify call with no
// context string.
func VerifyMLDSA(pubKey, message, sig []byte) error {
	if len(pubKey) != MLDSAPublicKeySize {
		return fmt.Errorf("pq: ML-DSA-87 public key is %d bytes, want %d", len(pubKey), MLDSAPublicKeySize)
	}
	if len(sig) != MLDSASignatureSize {
		return fmt.Errorf("pq: ML-DSA-87 signature is %d bytes, want %d", len(sig), MLDSASignatureSize)
	}
	var pk mldsa87.PublicKey
	if err := pk.UnmarshalBinary(pubKey); err != nil {
		return fmt.Errorf("pq: unmarshal ML-DSA-87 public key: %w", err)
	}
	if !mldsa87.Verify(&pk, message, nil, sig) {
		return fmt.Errorf("pq: ML-DSA-87 signature verification failed")
	}
	return nil
}
