package walletpk

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const secpHex = "045b86101f804f3f4f2012ef31fff807e87de579a3faa7947d1b487a810e35dc2c3b6071ac465046634b5f4a8e09bf8e1f2e7eccb699356b9e6fd496ca4b1677d1"

func TestFromString(t *testing.T) {
	require := require.New(t)

	exp := PubKey{
		Type: Types.Uncrackable,
		Raw:  common.FromHex(secpHex),
	}

	for _, in := range []string{"c0" + secpHex, "0xc0" + secpHex} {
		got, err := FromString(in)
		require.NoError(err)
		require.Equal(exp, got)
	}

	for _, bad := range []string{"", "0x", "-"} {
		_, err := FromString(bad)
		require.Error(err, bad)
	}
}

func TestString(t *testing.T) {
	pk := GenerateFactorable()
	require.Equal(t, "0xa100000000000000110000000000000ca1", pk.String())
	require.Equal(t, "RSA", pk.Scheme())
	require.True(t, pk.Factorable())
}

func TestEmptyAndCopy(t *testing.T) {
	require := require.New(t)

	require.True(PubKey{}.Empty())

	original := PubKey{Type: Types.Factorable, Raw: []byte{0xAA, 0xBB}}
	require.False(original.Empty())

	cp := original.Copy()
	require.Equal(original, cp)
	cp.Raw[0] = 0xFF
	require.Equal(uint8(0xAA), original.Raw[0])
}

func TestFromBytes(t *testing.T) {
	require := require.New(t)

	input := []byte{0xc0, 0x01, 0x02}
	pk, err := FromBytes(input)
	require.NoError(err)
	require.Equal(Types.Uncrackable, pk.Type)
	require.Equal([]byte{0x01, 0x02}, pk.Raw)

	input[1] = 0xFF
	require.Equal(uint8(0x01), pk.Raw[0])

	_, err = FromBytes(nil)
	require.Error(err)
}

func TestMarshalUnmarshal(t *testing.T) {
	require := require.New(t)

	original := GenerateFactorable()
	data, err := json.Marshal(&original)
	require.NoError(err)
	require.Equal(`"`+original.String()+`"`, string(data))

	var decoded PubKey
	require.NoError(json.Unmarshal(data, &decoded))
	require.Equal(original, decoded)
}

func TestParseScheme(t *testing.T) {
	for name, exp := range map[string]uint8{"RSA": Types.Factorable, "ecc": Types.Uncrackable} {
		got, err := ParseScheme(name)
		require.NoError(t, err)
		require.Equal(t, exp, got)
		require.Equal(t, SchemeName(exp), SchemeName(got))
	}
	_, err := ParseScheme("DSA")
	require.Error(t, err)
	require.Equal(t, "unknown", SchemeName(0x01))
}
