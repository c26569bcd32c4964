// Package rules defines the consensus rules the fork validation engine enforces.
//
// This package provides:
//   - DefenseMode, the named defense posture (LEGACY, CBL, STAKE_CBL, HYBRID)
//   - Rules, the full parameter set of one posture
//   - Presets for every mode and Overrides for configuration-driven tuning
//
// The Rules type is a plain value: it is copied into every validation call, so
// changing the active mode of a simulation never affects a decision in flight.

package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rony4d/go-opera-forksim/inter/walletpk"
)

// DefenseMode names a consensus defense posture.
type DefenseMode string

const (
	// Legacy accepts the longest chain and nothing else.
	Legacy DefenseMode = "LEGACY"
	// CBL rejects forks with a run of consecutive blocks by one miner longer
	// than the limit, then falls back to the longest chain.
	CBL DefenseMode = "CBL"
	// StakeCBL weighs chains by the stake of their miners and slashes the
	// adversary on rejection. It does not scan for consecutive runs.
	StakeCBL DefenseMode = "STAKE_CBL"
	// Hybrid runs the consecutive scan and then the stake rule.
	Hybrid DefenseMode = "HYBRID"
)

// ErrUnknownMode is returned when a mode name is not one of the defense modes.
var ErrUnknownMode = errors.New("unknown defense mode")

// Modes lists every defense mode in escalation order.
func Modes() []DefenseMode {
	return []DefenseMode{Legacy, CBL, StakeCBL, Hybrid}
}

// ParseDefenseMode resolves a mode name case-insensitively. A dash is accepted
// in place of the underscore, so "stake-cbl" parses as STAKE_CBL.
func ParseDefenseMode(s string) (DefenseMode, error) {
	m := DefenseMode(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	if !m.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of Modes.
func (m DefenseMode) Valid() bool {
	switch m {
	case Legacy, CBL, StakeCBL, Hybrid:
		return true
	}
	return false
}

func (m DefenseMode) String() string { return string(m) }

// MarshalText implements encoding.TextMarshaler.
func (m DefenseMode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are rejected.
func (m *DefenseMode) UnmarshalText(input []byte) error {
	res, err := ParseDefenseMode(string(input))
	if err != nil {
		return err
	}
	*m = res
	return nil
}

// Default parameter values shared by the presets.
const (
	DefaultConsecutiveLimit = 2
	DefaultPrimaryPenalty   = 50
	DefaultSybilPenalty     = 25
)

// DefaultBackingIdentities are the honest identities whose stake backs the
// canonical chain under stake weighting.
var DefaultBackingIdentities = []string{"Alice", "Bob"}

// Rules describes one defense posture completely.
//
// Note: Copy() must deep-copy every slice field.
type Rules struct {
	// Name is a human readable label, e.g. "cbl".
	Name string
	// Mode selects the rule chain the engine applies after the structural and
	// authenticity checks.
	Mode DefenseMode

	// Consecutive enables the consecutive-block scan.
	Consecutive bool
	// ConsecutiveLimit is the longest allowed run of blocks by one miner.
	ConsecutiveLimit int

	// Stake enables stake weighting instead of the longest chain rule.
	Stake bool
	// PrimaryPenalty is slashed from an adversary mining under its own name.
	PrimaryPenalty uint64
	// SybilPenalty is slashed from each adversary sub-identity.
	SybilPenalty uint64
	// BackingIdentities add their stake to the canonical chain's weight.
	BackingIdentities []string

	// KeyScheme is the walletpk type the principal wallets are generated with.
	KeyScheme uint8
}

// LegacyRules returns the longest-chain posture with factorable keys.
func LegacyRules() Rules {
	return Rules{
		Name:             "legacy",
		Mode:             Legacy,
		ConsecutiveLimit: DefaultConsecutiveLimit,
		PrimaryPenalty:   DefaultPrimaryPenalty,
		SybilPenalty:     DefaultSybilPenalty,
		KeyScheme:        walletpk.Types.Factorable,
	}
}

// CBLRules returns the consecutive-block-limit posture with factorable keys.
func CBLRules() Rules {
	r := LegacyRules()
	r.Name = "cbl"
	r.Mode = CBL
	r.Consecutive = true
	return r
}

// StakeCBLRules returns the stake weighted posture. Keys are uncrackable, so
// the adversary can no longer forge a victim's transaction.
func StakeCBLRules() Rules {
	r := LegacyRules()
	r.Name = "stake_cbl"
	r.Mode = StakeCBL
	r.Stake = true
	r.BackingIdentities = append([]string(nil), DefaultBackingIdentities...)
	r.KeyScheme = walletpk.Types.Uncrackable
	return r
}

// HybridRules returns the combination of the consecutive scan and stake weighting.
func HybridRules() Rules {
	r := StakeCBLRules()
	r.Name = "hybrid"
	r.Mode = Hybrid
	r.Consecutive = true
	return r
}

// ForMode returns the preset of a mode.
func ForMode(m DefenseMode) (Rules, error) {
	switch m {
	case Legacy:
		return LegacyRules(), nil
	case CBL:
		return CBLRules(), nil
	case StakeCBL:
		return StakeCBLRules(), nil
	case Hybrid:
		return HybridRules(), nil
	}
	return Rules{}, fmt.Errorf("%w %q", ErrUnknownMode, string(m))
}

// UsesUncrackableKeys reports whether principal wallets hold secp256k1 keys.
func (r Rules) UsesUncrackableKeys() bool {
	return r.KeyScheme == walletpk.Types.Uncrackable
}

// Copy returns a deep copy of the rules.
func (r Rules) Copy() Rules {
	cp := r
	if r.BackingIdentities != nil {
		cp.BackingIdentities = append([]string(nil), r.BackingIdentities...)
	}
	return cp
}

// String returns the JSON representation of the rules.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}

// Overrides tunes preset parameters. Zero values leave the preset untouched.
type Overrides struct {
	ConsecutiveLimit  int      `json:"consecutiveLimit,omitempty"`
	PrimaryPenalty    uint64   `json:"primaryPenalty,omitempty"`
	SybilPenalty      uint64   `json:"sybilPenalty,omitempty"`
	BackingIdentities []string `json:"backingIdentities,omitempty"`
}

// Apply returns a copy of r with the non-zero overrides set. Backing
// identities are only replaced on postures that use stake weighting.
func (o Overrides) Apply(r Rules) Rules {
	r = r.Copy()
	if o.ConsecutiveLimit > 0 {
		r.ConsecutiveLimit = o.ConsecutiveLimit
	}
	if o.PrimaryPenalty > 0 {
		r.PrimaryPenalty = o.PrimaryPenalty
	}
	if o.SybilPenalty > 0 {
		r.SybilPenalty = o.SybilPenalty
	}
	if r.Stake && len(o.BackingIdentities) > 0 {
		r.BackingIdentities = append([]string(nil), o.BackingIdentities...)
	}
	return r
}
