package pq

import "testing"

func TestMLDSASignAndVerify(t *testing.T) {
	kp, err := GenerateMLDSAKeypair()
	if err != nil {
		t.Fatalf("GenerateMLDSAKeypair() error = %v", err)
	}
	defer kp.SecretKey.Close()

	message := []byte("canonical placeholder header bytes")
	sig, err := kp.Sign(message)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != MLDSASignatureSize {
		t.Errorf("signature length = %d, want %d", len(sig), MLDSASignatureSize)
	}

	if err := VerifyMLDSA(kp.PublicKey, message, sig); err != nil {
		t.Errorf("VerifyMLDSA() of a valid signature failed: %v", err)
	}
}

func TestMLDSAVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := GenerateMLDSAKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer kp.SecretKey.Close()

	sig, err := kp.Sign([]byte("original header bytes"))
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyMLDSA(kp.PublicKey, []byte("tampered header bytes"), sig); err == nil {
		t.Error("VerifyMLDSA() accepted a signature over a different message")
	}
}

func TestMLDSAVerifyRejectsWrongKey(t *testing.T) {
	kp1, err := GenerateMLDSAKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer kp1.SecretKey.Close()
	kp2, err := GenerateMLDSAKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer kp2.SecretKey.Close()

	message := []byte("header bytes")
	sig, err := kp1.Sign(message)
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyMLDSA(kp2.PublicKey, message, sig); err == nil {
		t.Error("VerifyMLDSA() accepted a signature under the wrong public key")
	}
}
