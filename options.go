package qsfs

import (
	"github.com/qsfs/qsfs/internal/header"
	"github.com/qsfs/qsfs/internal/pq"
	"github.com/qsfs/qsfs/internal/signer"
	"github.com/qsfs/qsfs/internal/trustdb"
)

// FormatVersion selects which container wire version Seal writes.
type FormatVersion int

const (
	// FormatV20 writes the original container layout: no per-file
	// kdf_salt, stream keys derived under the fixed literal salt
	// "qsfs/kdf/v2".
	FormatV20 FormatVersion = iota
	// FormatV21 writes a per-file random kdf_salt into the header and
	// derives stream keys under it. This is the default: it removes the
	// only shared value across every container sealed with a given KEK.
	FormatV21
)

const (
	defaultChunkSize    = 128 * 1024
	defaultSuite        = header.SuiteAES256GCMSIV
	defaultFormat       = FormatV21
)

// Recipient is one party who should be able to unseal the container: their
// ML-KEM-1024 public key, and optionally an X25519 public key enabling
// hybrid mode for that recipient specifically.
type Recipient struct {
	Label       string
	MLKEMPublic []byte
	X25519Public []byte // nil for a non-hybrid recipient
}

// sealConfig holds configuration built up by SealOption.
type sealConfig struct {
	recipients    []Recipient
	chunkSize     int
	suite         header.SuiteID
	signer        *signer.Signer
	formatVersion FormatVersion
}

func newSealConfig() *sealConfig {
	return &sealConfig{
		chunkSize:     defaultChunkSize,
		suite:         defaultSuite,
		formatVersion: defaultFormat,
	}
}

// unsealConfig holds configuration built up by UnsealOption.
type unsealConfig struct {
	mlkemSecret      *pq.MLKEMKeypair
	x25519Secret     *pq.X25519Keypair
	allowUnsigned    bool
	trustAnySigner   bool
	trustStore       trustdb.TrustDB
	requireFormat    FormatVersion
	requireFormatSet bool
}

func newUnsealConfig() *unsealConfig {
	return &unsealConfig{}
}

// SealOption configures a Seal call.
type SealOption func(*sealConfig)

// UnsealOption configures an Unseal call.
type UnsealOption func(*unsealConfig)

// WithRecipient adds a recipient who will be able to unseal the container.
// Seal requires at least one.
func WithRecipient(r Recipient) SealOption {
	return func(c *sealConfig) {
		c.recipients = append(c.recipients, r)
	}
}

// WithRecipients adds several recipients at once.
func WithRecipients(rs ...Recipient) SealOption {
	return func(c *sealConfig) {
		c.recipients = append(c.recipients, rs...)
	}
}

// WithChunkSize sets the plaintext chunk size used by the streaming AEAD
// layer. Default: 128 KiB.
func WithChunkSize(size int) SealOption {
	return func(c *sealConfig) {
		c.chunkSize = size
	}
}

// WithSuite selects the AEAD suite for the chunk stream. Default:
// aes256-gcm-siv.
func WithSuite(suite header.SuiteID) SealOption {
	return func(c *sealConfig) {
		c.suite = suite
	}
}

// WithSigner has Seal sign the header with the given ML-DSA-87 signer. A
// container sealed without a signer carries no signature at all: it is not
// a container with an invalid signature, it is unsigned. The two are
// distinct failure modes on unseal.
func WithSigner(s *signer.Signer) SealOption {
	return func(c *sealConfig) {
		c.signer = s
	}
}

// WithFormatVersion selects the wire version Seal writes. Default:
// FormatV21.
func WithFormatVersion(v FormatVersion) SealOption {
	return func(c *sealConfig) {
		c.formatVersion = v
	}
}

// WithMLKEMSecret supplies the caller's ML-KEM-1024 secret key, used to try
// unwrapping each recipient entry in the header in turn.
func WithMLKEMSecret(kp *pq.MLKEMKeypair) UnsealOption {
	return func(c *unsealConfig) {
		c.mlkemSecret = kp
	}
}

// WithX25519Secret supplies the caller's X25519 secret key, required to
// unwrap a hybrid recipient entry. Unnecessary for a non-hybrid container.
func WithX25519Secret(kp *pq.X25519Keypair) UnsealOption {
	return func(c *unsealConfig) {
		c.x25519Secret = kp
	}
}

// WithAllowUnsigned has Unseal accept a container with no signature at all.
// Default: false, fail closed.
func WithAllowUnsigned(allow bool) UnsealOption {
	return func(c *unsealConfig) {
		c.allowUnsigned = allow
	}
}

// WithTrustAnySigner has Unseal skip the trust database lookup once a
// signature verifies cryptographically. Default: false. Signature
// verification is never skipped. Only the "and is this signer one I trust"
// step is bypassed.
func WithTrustAnySigner(trust bool) UnsealOption {
	return func(c *unsealConfig) {
		c.trustAnySigner = trust
	}
}

// WithRequireFormatVersion has Unseal reject any container whose wire
// version is not exactly v. Without this option Unseal accepts both v2.0
// and v2.1 containers transparently. Useful for a caller that must enforce
// "only v2.1 containers from here on," e.g. during a migration window.
func WithRequireFormatVersion(v FormatVersion) UnsealOption {
	return func(c *unsealConfig) {
		c.requireFormat = v
		c.requireFormatSet = true
	}
}

// WithTrustStore supplies the trust database Unseal consults for a signed
// container, unless WithTrustAnySigner(true) is also given.
func WithTrustStore(store trustdb.TrustDB) UnsealOption {
	return func(c *unsealConfig) {
		c.trustStore = store
	}
}
