// Package walletpk provides abstractions for wallet public keys.
// A PubKey carries its key scheme in the Type byte, so the consensus engine can
// tell a factorable toy RSA key from an uncrackable elliptic curve key without
// parsing the raw bytes.

package walletpk

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// PubKey represents a wallet's public key.
type PubKey struct {
	// Type identifies the key scheme, one of Types.
	Type uint8
	// Raw contains the scheme specific public key bytes.
	Raw []byte
}

// Types defines the supported key schemes.
var Types = struct {
	Factorable  uint8
	Uncrackable uint8
}{
	// Factorable is a toy RSA key whose modulus can be factored by trial division.
	Factorable: 0xa1,
	// Uncrackable is a secp256k1 key.
	Uncrackable: 0xc0,
}

// SchemeName returns the display name of a key scheme.
func SchemeName(t uint8) string {
	switch t {
	case Types.Factorable:
		return "RSA"
	case Types.Uncrackable:
		return "ECC"
	default:
		return "unknown"
	}
}

// ParseScheme resolves a display name ("RSA" or "ECC") into a key scheme.
func ParseScheme(name string) (uint8, error) {
	switch name {
	case "RSA", "rsa":
		return Types.Factorable, nil
	case "ECC", "ecc":
		return Types.Uncrackable, nil
	}
	return 0, errors.New("unknown key scheme " + name)
}

// Empty reports whether the key is the zero value.
func (pk PubKey) Empty() bool {
	return len(pk.Raw) == 0 && pk.Type == 0
}

// Scheme returns the display name of the key's scheme.
func (pk PubKey) Scheme() string {
	return SchemeName(pk.Type)
}

// Factorable reports whether the private key can be recovered from the public key.
func (pk PubKey) Factorable() bool {
	return pk.Type == Types.Factorable
}

// String returns the 0x prefixed hex of Bytes.
func (pk PubKey) String() string {
	return "0x" + common.Bytes2Hex(pk.Bytes())
}

// Bytes returns [Type] followed by the raw key bytes.
func (pk PubKey) Bytes() []byte {
	return append([]byte{pk.Type}, pk.Raw...)
}

// Copy returns a deep copy.
func (pk PubKey) Copy() PubKey {
	return PubKey{
		Type: pk.Type,
		Raw:  common.CopyBytes(pk.Raw),
	}
}

// FromString parses a hex string with or without the 0x prefix.
func FromString(str string) (PubKey, error) {
	return FromBytes(common.FromHex(str))
}

// FromBytes reconstructs a PubKey from its flat representation.
func FromBytes(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, errors.New("empty pubkey")
	}
	return PubKey{b[0], common.CopyBytes(b[1:])}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (pk *PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
