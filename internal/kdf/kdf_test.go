package kdf

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

// TestKATDeriveKEK reproduces
// original_source/crates/qsfs-core/tests/kat_v2.rs::kat_kek_and_wrap's KEK
// half (v2.0 salt, hybrid ikm = mlkem_ss‖x25519_ss).
func TestKATDeriveKEK(t *testing.T) {
	mlkemSS := mustHex(t, "303132333435363738393a3b3c3d3e3f404142434445464748494a4b4c4d4e4f")
	x25519SS := mustHex(t, "505152535455565758595a5b5c5d5e5f606162636465666768696a6b6c6d6e6f")
	ikm := append(append([]byte{}, mlkemSS...), x25519SS...)

	kek, err := DeriveKEK([]byte(V2SaltLiteral), ikm)
	if err != nil {
		t.Fatalf("DeriveKEK() error = %v", err)
	}
	defer kek.Close()

	want := mustHex(t, "b48776ae06e112d1115e002a687cb49b692e585eb37edb36e9ae3b2e1ddcee12")
	if !bytes.Equal(kek.Bytes(), want) {
		t.Fatalf("KEK mismatch:\n got = %x\nwant = %x", kek.Bytes(), want)
	}
}

func TestDeriveStreamKeysLengthsAndDistinctness(t *testing.T) {
	cek := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x11}, 32))
	defer cek.Close()

	keys, err := DeriveStreamKeys([]byte(V2SaltLiteral), cek)
	if err != nil {
		t.Fatalf("DeriveStreamKeys() error = %v", err)
	}
	defer keys.Close()

	if keys.K1.Len() != 32 || keys.K2.Len() != 32 {
		t.Errorf("K1/K2 length = %d/%d, want 32/32", keys.K1.Len(), keys.K2.Len())
	}
	if bytes.Equal(keys.K1.Bytes(), keys.K2.Bytes()) {
		t.Error("K1 and K2 must differ (distinct HKDF info labels)")
	}
}

// TestDeriveStreamKeysIsDeterministic derives stream keys twice from the
// same fixed CEK (000102…1f) and salt and checks that K1 and file_id come
// out byte-for-byte identical both times. It does not compare against
// literal expected bytes.
func TestDeriveStreamKeysIsDeterministic(t *testing.T) {
	cek := secretbuf.NewFromBytes(mustHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"))
	defer cek.Close()

	keys, err := DeriveStreamKeys([]byte(V2SaltLiteral), cek)
	if err != nil {
		t.Fatalf("DeriveStreamKeys() error = %v", err)
	}
	defer keys.Close()

	cek2 := secretbuf.NewFromBytes(mustHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"))
	defer cek2.Close()
	keys2, err := DeriveStreamKeys([]byte(V2SaltLiteral), cek2)
	if err != nil {
		t.Fatalf("DeriveStreamKeys() error = %v", err)
	}
	defer keys2.Close()

	if !bytes.Equal(keys.K1.Bytes(), keys2.K1.Bytes()) {
		t.Error("DeriveStreamKeys() must be deterministic: same CEK and salt produced different K1")
	}
	if keys.FileID != keys2.FileID {
		t.Error("DeriveStreamKeys() must be deterministic: same CEK and salt produced different file_id")
	}
}

func TestDistinctCEKsYieldDistinctFileIDs(t *testing.T) {
	cek1 := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x01}, 32))
	cek2 := secretbuf.NewFromBytes(bytes.Repeat([]byte{0x02}, 32))
	defer cek1.Close()
	defer cek2.Close()

	k1, err := DeriveStreamKeys([]byte(V2SaltLiteral), cek1)
	if err != nil {
		t.Fatal(err)
	}
	defer k1.Close()
	k2, err := DeriveStreamKeys([]byte(V2SaltLiteral), cek2)
	if err != nil {
		t.Fatal(err)
	}
	defer k2.Close()

	if k1.FileID == k2.FileID {
		t.Error("distinct CEKs produced identical file_id")
	}
}
