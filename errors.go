package qsfs

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks, one per distinguishable failure
// kind a caller needs to branch on.
var (
	// ErrFormatInvalid is returned when a container's header cannot be
	// parsed: bad magic, truncated fields, or a reserved field holding an
	// unexpected value.
	ErrFormatInvalid = errors.New("qsfs: invalid container format")

	// ErrUnsupportedVersion is returned for a header whose wire version
	// this build does not understand.
	ErrUnsupportedVersion = errors.New("qsfs: unsupported container version")

	// ErrSignatureMissing is returned when a container carries no
	// signature and the caller did not opt into AllowUnsigned.
	ErrSignatureMissing = errors.New("qsfs: container is not signed")

	// ErrSignerUntrusted is returned when a signature verifies but its
	// signer is not present in the trust database.
	ErrSignerUntrusted = errors.New("qsfs: signer is not trusted")

	// ErrSignatureInvalid is returned when a signature fails
	// cryptographic verification.
	ErrSignatureInvalid = errors.New("qsfs: signature verification failed")

	// ErrNoRecipientMatch is returned when none of a container's
	// recipient entries unwrap under the caller's secret key.
	ErrNoRecipientMatch = errors.New("qsfs: no recipient entry could be unwrapped with this key")

	// ErrAuthenticationFailed is returned when a chunk's AEAD tag does
	// not verify during unsealing.
	ErrAuthenticationFailed = errors.New("qsfs: chunk authentication failed")

	// ErrCiphertextCorrupt is returned for a malformed chunk stream: bad
	// framing, out-of-order index, or an oversize chunk.
	ErrCiphertextCorrupt = errors.New("qsfs: ciphertext stream is corrupt")

	// ErrPolicyError is returned when a request conflicts with its own
	// stated policy, e.g. a Seal call with no recipients or an
	// out-of-range chunk size, or an Unseal call without an ML-KEM secret.
	ErrPolicyError = errors.New("qsfs: policy error")
)

// Error is implemented by every typed error this package returns, letting
// callers type-switch on the error kind without depending on its exact
// struct, mirroring vaultsandbox-client-go's VaultSandboxError marker
// interface.
type Error interface {
	error
	qsfsError() // marker method
}

// FormatError wraps a header-parsing failure.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qsfs: format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("qsfs: format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }
func (e *FormatError) Is(target error) bool {
	return target == ErrFormatInvalid || target == ErrUnsupportedVersion
}
func (e *FormatError) qsfsError() {}

// SignatureError wraps a signature or trust failure.
type SignatureError struct {
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qsfs: signature error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("qsfs: signature error: %s", e.Reason)
}

func (e *SignatureError) Unwrap() error { return e.Err }
func (e *SignatureError) Is(target error) bool {
	switch target {
	case ErrSignatureMissing, ErrSignerUntrusted, ErrSignatureInvalid:
		return true
	}
	return false
}
func (e *SignatureError) qsfsError() {}

// KeyError wraps a recipient-key-matching failure during unseal.
type KeyError struct {
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("qsfs: key error: %v", e.Err)
}
func (e *KeyError) Unwrap() error  { return e.Err }
func (e *KeyError) Is(target error) bool { return target == ErrNoRecipientMatch }
func (e *KeyError) qsfsError()     {}

// StreamError wraps a chunk-stream decryption or framing failure.
type StreamError struct {
	ChunkIndex uint32
	Reason     string
	Err        error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qsfs: stream error at chunk %d: %s: %v", e.ChunkIndex, e.Reason, e.Err)
	}
	return fmt.Sprintf("qsfs: stream error at chunk %d: %s", e.ChunkIndex, e.Reason)
}
func (e *StreamError) Unwrap() error { return e.Err }
func (e *StreamError) Is(target error) bool {
	return target == ErrAuthenticationFailed || target == ErrCiphertextCorrupt
}
func (e *StreamError) qsfsError() {}

// PolicyError wraps a request that conflicts with its own configuration.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string       { return fmt.Sprintf("qsfs: policy error: %s", e.Reason) }
func (e *PolicyError) Is(target error) bool { return target == ErrPolicyError }
func (e *PolicyError) qsfsError()           {}

// IOError wraps a filesystem failure encountered while sealing or
// unsealing.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("qsfs: I/O error on %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) qsfsError()    {}
