package walletpk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecoverFactorable(t *testing.T) {
	require := require.New(t)

	pk := GenerateFactorable()
	e, n, err := FactorableParams(pk)
	require.NoError(err)
	require.EqualValues(17, e)
	require.EqualValues(3233, n)

	key, err := RecoverPrivateKey(pk)
	require.NoError(err)
	require.EqualValues(53, key.P)
	require.EqualValues(61, key.Q)
	require.EqualValues(2753, key.D)
	require.Equal("d=2753 (n=53*61)", key.String())
}

func TestRecoverUncrackable(t *testing.T) {
	require := require.New(t)

	pk, err := GenerateUncrackable()
	require.NoError(err)
	require.Equal(Types.Uncrackable, pk.Type)
	require.Len(pk.Raw, 65)
	require.Equal("ECC", pk.Scheme())

	other, err := GenerateUncrackable()
	require.NoError(err)
	require.NotEqual(pk.Raw, other.Raw)

	_, err = RecoverPrivateKey(pk)
	require.ErrorIs(err, ErrUncrackable)
}

func TestRecoverMalformed(t *testing.T) {
	_, err := RecoverPrivateKey(PubKey{Type: Types.Factorable, Raw: []byte{1, 2, 3}})
	require.ErrorIs(t, err, ErrMalformedKey)

	_, err = RecoverPrivateKey(PubKey{Type: 0x01})
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = Generate(0x01)
	require.ErrorIs(t, err, ErrUnknownScheme)
}
