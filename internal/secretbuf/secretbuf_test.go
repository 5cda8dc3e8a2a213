package secretbuf

import "testing"

func TestCloseZeroizes(t *testing.T) {
	buf := NewFromBytes([]byte{1, 2, 3, 4})
	if err := buf.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i, bt := range buf.b {
		if bt != 0 {
			t.Errorf("byte %d not zeroed: %v", i, buf.b)
		}
	}
}

func TestUseAfterClosePanics(t *testing.T) {
	buf := New(8)
	buf.Close()
	defer func() {
		if recover() == nil {
			t.Error("Bytes() after Close() did not panic")
		}
	}()
	_ = buf.Bytes()
}

func TestDoubleClosePanics(t *testing.T) {
	buf := New(8)
	buf.Close()
	defer func() {
		if recover() == nil {
			t.Error("second Close() did not panic")
		}
	}()
	_ = buf.Close()
}

func TestCloseAllHandlesNil(t *testing.T) {
	a := New(4)
	CloseAll(a, nil)
}
