package pae

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal: %v", err)
	}
	return b
}

// TestKATChunkAAD reproduces the PAE KAT from
// original_source/crates/qsfs-core/tests/kat_v2.rs::kat_pae_bytes.
func TestKATChunkAAD(t *testing.T) {
	fileID := [8]byte{0x8e, 0xaf, 0x01, 0x5d, 0x9b, 0x2c, 0x15, 0x28}
	got := ChunkAAD("aes256-gcm-siv", 131072, fileID, nil)
	want := mustHex(t, ""+
		"515346532d50414501"+ // "QSFS-PAE" || 0x01
		"0000000000000007"+ // len("qsfs/v2")
		"717366732f7632"+ // "qsfs/v2"
		"000000000000000e"+ // len("aes256-gcm-siv")
		"6165733235362d67636d2d736976"+ // "aes256-gcm-siv"
		"0000000000000004"+ // len(u32 chunk_size)
		"00020000"+ // 131072
		"0000000000000008"+ // len(file_id)
		"8eaf015d9b2c1528", // file_id
	)
	if !bytes.Equal(got, want) {
		t.Fatalf("PAE mismatch:\n got = %x\nwant = %x", got, want)
	}
}

func TestChunkAADVersionTagsDiffer(t *testing.T) {
	fileID := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	v1 := ChunkAAD("aes256-gcm", 4096, fileID, nil)
	salt := bytes.Repeat([]byte{0x42}, 32)
	v2 := ChunkAAD("aes256-gcm", 4096, fileID, salt)

	if v1[len(prefix)] != VersionV1 {
		t.Errorf("v1 version tag = %#x, want %#x", v1[len(prefix)], VersionV1)
	}
	if v2[len(prefix)] != VersionV2 {
		t.Errorf("v2 version tag = %#x, want %#x", v2[len(prefix)], VersionV2)
	}
	if bytes.Equal(v1, v2) {
		t.Error("v1 and v2 AAD must differ when kdf_salt is present")
	}
}

// TestInjectivity is a light property check (#10 in spec's testable
// properties): varying any one field must change the encoding, since
// length-prefixing prevents boundary ambiguity between adjacent fields.
func TestInjectivity(t *testing.T) {
	base := Encode(VersionV2, []byte("ab"), []byte("cd"))
	shifted := Encode(VersionV2, []byte("a"), []byte("bcd"))
	if bytes.Equal(base, shifted) {
		t.Error("PAE must be injective across field boundaries: \"ab\",\"cd\" vs \"a\",\"bcd\" collided")
	}
}

func TestEncodeNeverPanicsOnEmptyFields(t *testing.T) {
	out := Encode(VersionV1)
	want := append([]byte(prefix), VersionV1)
	if !bytes.Equal(out, want) {
		t.Errorf("Encode() with no fields = %x, want %x", out, want)
	}
}
