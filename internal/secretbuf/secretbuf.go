// Package secretbuf provides a clear-on-close wrapper for secret byte
// material: content encryption keys, key-encryption keys, derived stream
// keys, and KEM shared secrets.
package secretbuf

import "fmt"

// Buffer holds secret bytes that must be wiped once no longer needed. A
// Buffer is single-owner: Bytes borrows the underlying slice for the
// duration of one cryptographic operation, and Close zeroizes it. Using a
// Buffer after Close, or closing it twice, is a programming error and
// panics rather than silently succeeding.
type Buffer struct {
	b      []byte
	closed bool
}

// New allocates a zeroed Buffer of the given length.
func New(length int) *Buffer {
	return &Buffer{b: make([]byte, length)}
}

// NewFromBytes takes ownership of b. The caller must not retain or mutate
// b after this call; use Bytes to borrow it back.
func NewFromBytes(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Bytes borrows the underlying secret slice. The returned slice is only
// valid until Close is called.
func (s *Buffer) Bytes() []byte {
	if s.closed {
		panic("secretbuf: use of closed Buffer")
	}
	return s.b
}

// Len reports the length of the secret without exposing its bytes.
func (s *Buffer) Len() int {
	if s.closed {
		panic("secretbuf: use of closed Buffer")
	}
	return len(s.b)
}

// Close zeroizes the underlying bytes. It is safe to defer Close
// immediately after construction; Close on an already-closed Buffer
// panics to surface double-free bugs during development.
func (s *Buffer) Close() error {
	if s.closed {
		panic("secretbuf: double close of Buffer")
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.closed = true
	return nil
}

// CloseAll closes every non-nil buffer in bufs, in order. Intended for the
// exit path of seal/unseal where several secrets (CEK, KEK, K1, K2) must
// all be wiped regardless of which step failed. It does not recover
// panics: a buffer that is already closed makes Close panic, and the
// buffers after it are then left unwiped.
func CloseAll(bufs ...*Buffer) {
	for _, b := range bufs {
		if b != nil {
			_ = b.Close()
		}
	}
}

// String never reveals the contents; it exists only so a Buffer can be
// placed in a struct that gets passed to a logger without a panic.
func (s *Buffer) String() string {
	return fmt.Sprintf("secretbuf.Buffer{len=%d,closed=%v}", len(s.b), s.closed)
}
