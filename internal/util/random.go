package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var alnumUpper = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// RandomAlnum returns n random upper-case alphanumeric characters.
func RandomAlnum(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(alnumUpper))
		if err != nil {
			return "", fmt.Errorf("generating random char index: %w", err)
		}
		sb.WriteRune(alnumUpper[idx])
	}
	return sb.String(), nil
}

// RandomIntn returns a uniform random int in [0, max) from the CSPRNG.
func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
