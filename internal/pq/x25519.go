// X25519 has no precedent in vaultsandbox-client-go, which is
// post-quantum-only. The hybrid combiner here is enriched from the rest of
// the retrieved pack's use of golang.org/x/crypto: same module vaultsandbox
// already depends on, one directory over from its hkdf import.
package pq

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

const (
	// X25519KeySize is the size of an X25519 public or secret key in bytes.
	X25519KeySize = curve25519.PointSize
)

// X25519Keypair is an ephemeral or long-lived X25519 keypair used by the
// hybrid combiner.
type X25519Keypair struct {
	PublicKey []byte
	SecretKey *secretbuf.Buffer
}

// GenerateX25519Keypair creates a new X25519 keypair.
func GenerateX25519Keypair() (*X25519Keypair, error) {
	sk := secretbuf.New(X25519KeySize)
	if _, err := io.ReadFull(randReader, sk.Bytes()); err != nil {
		sk.Close()
		return nil, fmt.Errorf("pq: read X25519 secret key: %w", err)
	}
	pub, err := curve25519.X25519(sk.Bytes(), curve25519.Basepoint)
	if err != nil {
		sk.Close()
		return nil, fmt.Errorf("pq: derive X25519 public key: %w", err)
	}
	return &X25519Keypair{PublicKey: pub, SecretKey: sk}, nil
}

// NewX25519KeypairFromBytes reconstructs a keypair from raw bytes.
func NewX25519KeypairFromBytes(publicKey, secretKey []byte) (*X25519Keypair, error) {
	if len(publicKey) != X25519KeySize || len(secretKey) != X25519KeySize {
		return nil, fmt.Errorf("pq: X25519 keys must be %d bytes", X25519KeySize)
	}
	pubCopy := make([]byte, X25519KeySize)
	copy(pubCopy, publicKey)
	skCopy := make([]byte, X25519KeySize)
	copy(skCopy, secretKey)
	return &X25519Keypair{PublicKey: pubCopy, SecretKey: secretbuf.NewFromBytes(skCopy)}, nil
}

// X25519Exchange computes the shared secret between localSecret and
// remotePublic, rejecting an all-zero result. An all-zero output means the
// remote point was a low-order point (the classic curve25519 contributory
// behavior failure): accepting it would let an attacker force the
// HybridCombine output to depend on the ML-KEM half alone, silently
// degrading the hybrid suite to non-hybrid security. Spec.md §9 requires
// this be rejected outright rather than substituted or logged.
func X25519Exchange(localSecret *secretbuf.Buffer, remotePublic []byte) (*secretbuf.Buffer, error) {
	if len(remotePublic) != X25519KeySize {
		return nil, fmt.Errorf("pq: X25519 public key is %d bytes, want %d", len(remotePublic), X25519KeySize)
	}
	shared, err := curve25519.X25519(localSecret.Bytes(), remotePublic)
	if err != nil {
		return nil, fmt.Errorf("pq: X25519 exchange: %w", err)
	}
	out := secretbuf.NewFromBytes(shared)
	if bytes.Equal(out.Bytes(), make([]byte, X25519KeySize)) {
		out.Close()
		return nil, fmt.Errorf("pq: X25519 exchange produced all-zero shared secret (non-contributory remote key)")
	}
	return out, nil
}

// HybridCombine concatenates an ML-KEM shared secret with an X25519 shared
// secret in the normative order (mlkem_ss first) for input to
// internal/kdf.DeriveKEK. The order is fixed and must never be swapped:
// swapping it would silently change every hybrid KEK on a version that
// otherwise looks identical on the wire.
func HybridCombine(mlkemSS, x25519SS *secretbuf.Buffer) *secretbuf.Buffer {
	combined := make([]byte, 0, mlkemSS.Len()+x25519SS.Len())
	combined = append(combined, mlkemSS.Bytes()...)
	combined = append(combined, x25519SS.Bytes()...)
	return secretbuf.NewFromBytes(combined)
}
