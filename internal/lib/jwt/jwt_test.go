package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.NewToken("account-1", TypeAccess, time.Minute)
	require.NoError(t, err)

	sub, err := m.Parse(token, TypeAccess)
	require.NoError(t, err)
	require.Equal(t, "account-1", sub)
}

func TestTokensAreUnique(t *testing.T) {
	m := NewManager("test-secret")

	first, err := m.NewToken("account-1", TypeRefresh, time.Minute)
	require.NoError(t, err)

	second, err := m.NewToken("account-1", TypeRefresh, time.Minute)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestParse_WrongType(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.NewToken("account-1", TypeRefresh, time.Minute)
	require.NoError(t, err)

	_, err = m.Parse(token, TypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.NewToken("account-1", TypeAccess, time.Minute)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = m.Parse(token, TypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.NewToken("account-1", TypeAccess, time.Minute)
	require.NoError(t, err)

	other := NewManager("other-secret")

	_, err = other.Parse(token, TypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Tampered(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.NewToken("account-1", TypeAccess, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	tampered := parts[0] + ".eyJzdWIiOiJhY2NvdW50LTIifQ." + parts[2]

	_, err = m.Parse(tampered, TypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	m := NewManager("test-secret")

	_, err := m.Parse("not-a-token", TypeAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}
