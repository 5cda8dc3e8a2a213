package main

import (
	"path/filepath"
	"testing"

	"github.com/qsfs/qsfs/internal/header"
)

func TestParseSuite(t *testing.T) {
	cases := []struct {
		name    string
		want    header.SuiteID
		wantErr bool
	}{
		{"", header.SuiteAES256GCMSIV, false},
		{"aes256-gcm-siv", header.SuiteAES256GCMSIV, false},
		{"aes256-gcm", header.SuiteAES256GCM, false},
		{"chacha20poly1305", header.SuiteChaCha20Poly1305, false},
		{"aes256-gcm-gcm", 0, true},
	}
	for _, c := range cases {
		got, err := parseSuite(c.name)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseSuite(%q) succeeded, want error", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSuite(%q) error = %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("parseSuite(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDecodeSignerID(t *testing.T) {
	valid := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	id, err := decodeSignerID(valid)
	if err != nil {
		t.Fatalf("decodeSignerID(%q) error = %v", valid, err)
	}
	if id[0] != 0x01 || id[31] != 0x20 {
		t.Errorf("decodeSignerID(%q) = %x, want leading 0x01 trailing 0x20", valid, id)
	}

	for _, bad := range []string{"", "zz", "0102", valid + "ff"} {
		if _, err := decodeSignerID(bad); err == nil {
			t.Errorf("decodeSignerID(%q) succeeded, want error", bad)
		}
	}
}

func TestKeyPaths(t *testing.T) {
	dir := t.TempDir()
	mlkemPub, mlkemSec, x25519Pub, x25519Sec, mldsaPub, mldsaSec := keyPaths(dir, "alice")

	want := map[string]string{
		mlkemPub:  "alice.mlkem.public",
		mlkemSec:  "alice.mlkem.secret",
		x25519Pub: "alice.x25519.public",
		x25519Sec: "alice.x25519.secret",
		mldsaPub:  "alice.mldsa.public",
		mldsaSec:  "alice.mldsa.secret",
	}
	for path, name := range want {
		if filepath.Dir(path) != dir {
			t.Errorf("keyPaths: %q not under %q", path, dir)
		}
		if filepath.Base(path) != name {
			t.Errorf("keyPaths: got base %q, want %q", filepath.Base(path), name)
		}
	}
}

func TestLocalSignerPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	first, err := localSigner(dir)
	if err != nil {
		t.Fatalf("localSigner() error = %v", err)
	}
	second, err := localSigner(dir)
	if err != nil {
		t.Fatalf("localSigner() second call error = %v", err)
	}
	if string(first.PublicKey) != string(second.PublicKey) {
		t.Fatal("localSigner() generated a new identity instead of reusing the persisted one")
	}
}
