package signer

import (
	"testing"

	"github.com/qsfs/qsfs/internal/header"
)

type fakeTrustDB struct {
	trusted map[[32]byte]bool
}

func (f *fakeTrustDB) Contains(signerID [32]byte) (bool, error) {
	return f.trusted[signerID], nil
}

func testHeader() *header.Header {
	h := &header.Header{Magic: header.Magic, Suite: header.SuiteAES256GCMSIV, ChunkSize: 131072, Fin: 1}
	h.Recipients = []header.RecipientEntry{{
		Label:      "alice",
		MLKEMCt:    make([]byte, header.MLKEMCiphertextSize),
		WrappedDEK: make([]byte, header.WrappedDEKSize),
	}}
	return h
}

func TestSignAndVerifyTrustedSigner(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{s.ID(): true}}
	if err := Verify(h, trust, Policy{}); err != nil {
		t.Errorf("Verify() of a trusted signature failed: %v", err)
	}
}

func TestVerifyRejectsUntrustedSigner(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatal(err)
	}

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{}}
	if err := Verify(h, trust, Policy{}); err == nil {
		t.Error("Verify() accepted a signature from an untrusted signer")
	}
}

func TestVerifyTrustAnySignerBypassesTrustDB(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatal(err)
	}

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{}}
	if err := Verify(h, trust, Policy{TrustAnySigner: true}); err != nil {
		t.Errorf("Verify() with TrustAnySigner rejected a valid signature: %v", err)
	}
}

func TestVerifyRejectsUnsignedByDefault(t *testing.T) {
	h := testHeader()
	trust := &fakeTrustDB{trusted: map[[32]byte]bool{}}
	if err := Verify(h, trust, Policy{}); err == nil {
		t.Error("Verify() accepted an unsigned header without AllowUnsigned")
	}
}

func TestVerifyAllowsUnsignedWhenPolicySet(t *testing.T) {
	h := testHeader()
	trust := &fakeTrustDB{trusted: map[[32]byte]bool{}}
	if err := Verify(h, trust, Policy{AllowUnsigned: true}); err != nil {
		t.Errorf("Verify() rejected unsigned header despite AllowUnsigned: %v", err)
	}
}

func TestVerifyRejectsTamperedPublicKeyAfterSigning(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatal(err)
	}
	h.SigMeta.PublicKey[0] ^= 0xff // tamper with the embedded signer public key

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{s.ID(): true}}
	if err := Verify(h, trust, Policy{TrustAnySigner: true}); err == nil {
		t.Error("Verify() accepted a header whose signature_metadata.public_key was tampered with after signing")
	}
}

func TestVerifyRejectsTamperedAlgorithmAfterSigning(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatal(err)
	}
	h.SigMeta.Algorithm = "ml-dsa-65" // tamper with the signed algorithm field

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{s.ID(): true}}
	if err := Verify(h, trust, Policy{TrustAnySigner: true}); err == nil {
		t.Error("Verify() accepted a header whose signature_metadata.algorithm was tampered with after signing")
	}
}

func TestVerifyRejectsTamperedHeaderAfterSigning(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader()
	if err := s.Sign(h); err != nil {
		t.Fatal(err)
	}
	h.ChunkSize = 999999 // tamper with a signed field

	trust := &fakeTrustDB{trusted: map[[32]byte]bool{s.ID(): true}}
	if err := Verify(h, trust, Policy{}); err == nil {
		t.Error("Verify() accepted a header tampered with after signing")
	}
}
