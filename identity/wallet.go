// Package identity holds the economic identities of the simulation: wallets
// with balances, stakes and keys, and the registry that owns them.
//
// A registry also remembers which identity was split from which. Sub-identities
// ("Eve_A", "Eve_B") are ordinary wallets that carry an explicit Parent
// reference, and the lineage outlives the wallets themselves so stake can still
// be attributed after a wallet set is regenerated.

package identity

import (
	"fmt"

	"github.com/rony4d/go-opera-forksim/inter/walletpk"
)

// Role tells honest identities apart from the adversary.
type Role uint8

const (
	RoleHonest Role = iota
	RoleAdversary
)

func (r Role) String() string {
	switch r {
	case RoleHonest:
		return "honest"
	case RoleAdversary:
		return "adversary"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(input []byte) error {
	switch string(input) {
	case "honest":
		*r = RoleHonest
	case "adversary":
		*r = RoleAdversary
	default:
		return fmt.Errorf("unknown role %q", input)
	}
	return nil
}

// Wallet is one economic identity.
type Wallet struct {
	Name string

	// Balance is always OriginalBalance replayed over the canonical chain.
	Balance         int64
	OriginalBalance int64

	// Stake changes only through slashing.
	Stake         uint64
	OriginalStake uint64

	PubKey walletpk.PubKey
	// Compromised is set once the private key has been recovered.
	Compromised bool

	Role Role
	// Parent names the identity this one was split from, empty for principals.
	Parent string
}

// Scheme returns the key scheme type, one of walletpk.Types.
func (w *Wallet) Scheme() uint8 {
	return w.PubKey.Type
}

// IsSubIdentity reports whether the wallet was created by a split.
func (w *Wallet) IsSubIdentity() bool {
	return w.Parent != ""
}

// Adversarial reports whether the wallet belongs to the adversary.
func (w *Wallet) Adversarial() bool {
	return w.Role == RoleAdversary
}

// Copy returns an independent copy of the wallet.
func (w *Wallet) Copy() *Wallet {
	cp := *w
	cp.PubKey = w.PubKey.Copy()
	return &cp
}

// WalletView is the display form of a wallet.
type WalletView struct {
	Name            string `json:"name"`
	Balance         int64  `json:"balance"`
	OriginalBalance int64  `json:"original_balance"`
	Stake           uint64 `json:"stake"`
	OriginalStake   uint64 `json:"original_stake"`
	KeyType         string `json:"key_type"`
	PubKey          string `json:"pub_key"`
	Compromised     bool   `json:"is_compromised"`
	Role            Role   `json:"role"`
	Parent          string `json:"parent,omitempty"`
}

// View returns the display form of the wallet.
func (w *Wallet) View() WalletView {
	return WalletView{
		Name:            w.Name,
		Balance:         w.Balance,
		OriginalBalance: w.OriginalBalance,
		Stake:           w.Stake,
		OriginalStake:   w.OriginalStake,
		KeyType:         w.PubKey.Scheme(),
		PubKey:          w.PubKey.String(),
		Compromised:     w.Compromised,
		Role:            w.Role,
		Parent:          w.Parent,
	}
}
