package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// NewCode returns a random 6-digit numeric code.
func NewCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		panic(fmt.Sprintf("otp: failed to read random source: %v", err))
	}

	return strconv.FormatInt(codeMin+n.Int64(), 10)
}
