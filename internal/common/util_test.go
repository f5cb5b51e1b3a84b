package common

import "testing"

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+79991234567", "+7999***"},
		{"12345", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := MaskPhone(tt.in); got != tt.want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
