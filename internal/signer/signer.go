// Package signer implements ML-DSA-87 header signing and verification,
// plus the trust-database consultation step that decides whether a
// verified signature is also an *authorized* one. It generalizes
// original_source/target/package/qsfs-core-0.1.1/src/signer.rs's Signer
// type (generate/sign/id_hex) and verify_signature function, and
// vaultsandbox-client-go's internal/crypto/verify.go "verify before
// decrypt" discipline, to QSFS's header-signing use case.
package signer

import (
	"crypto/sha256"
	"fmt"

	"github.com/qsfs/qsfs/internal/header"
	"github.com/qsfs/qsfs/internal/pq"
	"github.com/qsfs/qsfs/internal/trustdb"
)

// Algorithm is the fixed signature algorithm name recorded in
// header.SignatureMetadata.
const Algorithm = "ml-dsa-87"

// Signer holds an ML-DSA-87 keypair used to sign container headers.
type Signer struct {
	keypair *pq.MLDSAKeypair
	id      [32]byte
}

// ID returns the signer_id: SHA-256 of the public key.
func (s *Signer) ID() [32]byte { return s.id }

// PublicKey returns the raw ML-DSA-87 public key bytes.
func (s *Signer) PublicKey() []byte { return s.keypair.PublicKey }

// New wraps an existing ML-DSA-87 keypair as a Signer, computing its id.
func New(keypair *pq.MLDSAKeypair) *Signer {
	return &Signer{keypair: keypair, id: sha256.Sum256(keypair.PublicKey)}
}

// Generate creates a fresh ML-DSA-87 signer.
func Generate() (*Signer, error) {
	kp, err := pq.GenerateMLDSAKeypair()
	if err != nil {
		return nil, fmt.Errorf("signer: generate: %w", err)
	}
	return New(kp), nil
}

// Sign computes the canonical placeholder form of h and signs it, filling
// h.MLDSASig and h.SigMeta in place.
func (s *Signer) Sign(h *header.Header) error {
	meta := &header.SignatureMetadata{
		SignerID:  s.id,
		Algorithm: Algorithm,
		PublicKey: s.keypair.PublicKey,
	}
	signingInput, err := h.SigningInput(meta)
	if err != nil {
		return fmt.Errorf("signer: signing input: %w", err)
	}
	sig, err := s.keypair.Sign(signingInput)
	if err != nil {
		return fmt.Errorf("signer: sign: %w", err)
	}
	h.MLDSASig = sig
	h.SigMeta = meta
	return nil
}

// Policy controls how Verify treats an unsigned header or an untrusted
// signer, mirroring UnsealContext.allow_unsigned / trust_any_signer from
// original_source/crates/qsfs-core/src/lib.rs::unseal.
type Policy struct {
	AllowUnsigned  bool
	TrustAnySigner bool
}

// Verify checks h's signature (if present) and its signer's trust status.
//
// If h carries no signature, it returns nil only when policy.AllowUnsigned
// is set; otherwise it reports that the file is unsigned.
//
// If h carries a signature, it is always cryptographically verified
// first: trust never substitutes for a valid signature. Once verified,
// the signer_id is checked against trustStore unless
// policy.TrustAnySigner is set.
func Verify(h *header.Header, trustStore trustdb.TrustDB, policy Policy) error {
	if len(h.MLDSASig) == 0 {
		if policy.AllowUnsigned {
			return nil
		}
		return fmt.Errorf("signer: file is not signed (use AllowUnsigned to accept unsigned files)")
	}
	if h.SigMeta == nil {
		return fmt.Errorf("signer: signature present but signature_metadata missing")
	}
	if h.SigMeta.Algorithm != Algorithm {
		return fmt.Errorf("signer: signature_metadata.algorithm %q, want %q", h.SigMeta.Algorithm, Algorithm)
	}

	signingInput, err := h.SigningInput(h.SigMeta)
	if err != nil {
		return fmt.Errorf("signer: signing input: %w", err)
	}
	if err := pq.VerifyMLDSA(h.SigMeta.PublicKey, signingInput, h.MLDSASig); err != nil {
		return fmt.Errorf("signer: signature verification failed: %w", err)
	}

	computedID := sha256.Sum256(h.SigMeta.PublicKey)
	if computedID != h.SigMeta.SignerID {
		return fmt.Errorf("signer: signer_id does not match SHA-256 of the embedded public key")
	}

	if !policy.TrustAnySigner {
		trusted, err := trustStore.Contains(h.SigMeta.SignerID)
		if err != nil {
			return fmt.Errorf("signer: trust database lookup: %w", err)
		}
		if !trusted {
			return fmt.Errorf("signer: signer %x is not trusted (add with trustdb.Add, or set TrustAnySigner)", h.SigMeta.SignerID)
		}
	}

	return nil
}
