package otp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewCode()

		require.Len(t, code, 6)

		for _, r := range code {
			require.True(t, r >= '0' && r <= '9')
		}

		// No leading zero: codes live in [100000, 999999].
		require.NotEqual(t, byte('0'), code[0])
	}
}
