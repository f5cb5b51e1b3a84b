package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used for access keys and 2FA passwords once they were sent.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// MaskPhone keeps the first five characters of a phone number and hides the
// rest, for log lines.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 5 {
		return "***"
	}
	return string(r[:5]) + "***"
}
