package walletpk

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/crypto"
)

// Toy RSA parameters. The modulus is small enough to factor instantly.
const (
	toyP        = 61
	toyQ        = 53
	toyExponent = 17
)

var (
	// ErrUncrackable is returned when key recovery is attempted on a key whose
	// private part cannot be derived from the public key.
	ErrUncrackable = errors.New("ECC is uncrackable")
	// ErrMalformedKey is returned for a factorable key with an invalid encoding.
	ErrMalformedKey = errors.New("malformed factorable key")
	// ErrUnknownScheme is returned for a key type that is not one of Types.
	ErrUnknownScheme = errors.New("unknown key scheme")
)

// RecoveredKey is the private part of a factored toy RSA key.
type RecoveredKey struct {
	P, Q uint64
	D    uint64
}

func (k RecoveredKey) String() string {
	return fmt.Sprintf("d=%d (n=%d*%d)", k.D, k.P, k.Q)
}

// Generate creates a public key of the given scheme.
func Generate(scheme uint8) (PubKey, error) {
	switch scheme {
	case Types.Factorable:
		return GenerateFactorable(), nil
	case Types.Uncrackable:
		return GenerateUncrackable()
	}
	return PubKey{}, ErrUnknownScheme
}

// GenerateFactorable returns the toy RSA public key (e=17, n=3233) encoded as
// two big-endian uint64 values.
func GenerateFactorable() PubKey {
	raw := make([]byte, 0, 16)
	raw = append(raw, bigendian.Uint64ToBytes(toyExponent)...)
	raw = append(raw, bigendian.Uint64ToBytes(toyP*toyQ)...)
	return PubKey{Type: Types.Factorable, Raw: raw}
}

// GenerateUncrackable returns a fresh secp256k1 public key in uncompressed form.
// The private key is discarded: nobody in the simulation ever signs with it.
func GenerateUncrackable() (PubKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return PubKey{}, err
	}
	return PubKey{Type: Types.Uncrackable, Raw: crypto.FromECDSAPub(&key.PublicKey)}, nil
}

// FactorableParams decodes the exponent and modulus of a factorable key.
func FactorableParams(pk PubKey) (e, n uint64, err error) {
	if pk.Type != Types.Factorable || len(pk.Raw) != 16 {
		return 0, 0, ErrMalformedKey
	}
	return bigendian.BytesToUint64(pk.Raw[:8]), bigendian.BytesToUint64(pk.Raw[8:]), nil
}

// RecoverPrivateKey derives the private exponent from a public key. Factorable
// keys are broken by trial division of the modulus; uncrackable keys yield
// ErrUncrackable.
func RecoverPrivateKey(pk PubKey) (RecoveredKey, error) {
	switch pk.Type {
	case Types.Uncrackable:
		return RecoveredKey{}, ErrUncrackable
	case Types.Factorable:
	default:
		return RecoveredKey{}, ErrUnknownScheme
	}

	e, n, err := FactorableParams(pk)
	if err != nil {
		return RecoveredKey{}, err
	}
	p, q, ok := factor(n)
	if !ok {
		return RecoveredKey{}, fmt.Errorf("%w: modulus %d has no small factor", ErrMalformedKey, n)
	}

	phi := new(big.Int).SetUint64((p - 1) * (q - 1))
	d := new(big.Int).ModInverse(new(big.Int).SetUint64(e), phi)
	if d == nil {
		return RecoveredKey{}, fmt.Errorf("%w: exponent %d not invertible", ErrMalformedKey, e)
	}
	return RecoveredKey{P: p, Q: q, D: d.Uint64()}, nil
}

// factor returns the smallest prime factor of n and its cofactor.
func factor(n uint64) (p, q uint64, ok bool) {
	if n < 4 {
		return 0, 0, false
	}
	for i := uint64(2); i*i <= n; i++ {
		if n%i == 0 {
			return i, n / i, true
		}
	}
	return 0, 0, false
}
