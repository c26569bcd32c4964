package consensus

import (
	"errors"
	"fmt"
)

// HashMismatchError reports a broken parent link in the candidate chain.
type HashMismatchError struct {
	Index int
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("PoW violation: hash mismatch at block %d", e.Index)
}

// InconsistentKeyError reports a compromised flag on a key that cannot be
// recovered, which only happens when the registry was tampered with.
type InconsistentKeyError struct {
	TxID   string
	Sender string
}

func (e *InconsistentKeyError) Error() string {
	return fmt.Sprintf("transaction %s signature invalid: uncrackable key of %s cannot be compromised", e.TxID, e.Sender)
}

// ForgedSignatureError reports a forged signature token on a transaction
// whose sender's key was never recovered.
type ForgedSignatureError struct {
	TxID   string
	Sender string
}

func (e *ForgedSignatureError) Error() string {
	return fmt.Sprintf("transaction %s signature invalid: key of %s not compromised but signature is forged", e.TxID, e.Sender)
}

// ChainTooShortError reports a candidate that does not outgrow the canonical chain.
type ChainTooShortError struct {
	Candidate int
	Canonical int
}

func (e *ChainTooShortError) Error() string {
	return fmt.Sprintf("attack chain too short: %d <= %d", e.Candidate, e.Canonical)
}

// ConsecutiveLimitError reports the first run of blocks by one miner that is
// longer than the limit. Run is the full length of that run.
type ConsecutiveLimitError struct {
	Miner string
	Run   int
	Limit int
}

func (e *ConsecutiveLimitError) Error() string {
	return fmt.Sprintf("CBL violation: %s mined %d consecutive blocks (limit: %d)", e.Miner, e.Run, e.Limit)
}

// InsufficientStakeError reports a candidate outweighed by the canonical chain.
// Honest includes Backing.
type InsufficientStakeError struct {
	Attack  uint64
	Honest  uint64
	Backing uint64
}

func (e *InsufficientStakeError) Error() string {
	return fmt.Sprintf("insufficient stake weight: attack=%d < honest=%d (including %d stakeholder backing)", e.Attack, e.Honest, e.Backing)
}

// UnknownModeError reports rules carrying a mode the engine does not know.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown defense mode %s", e.Mode)
}

// ErrorKind classifies rejections by the kind of rule they violate.
type ErrorKind uint8

const (
	Unclassified ErrorKind = iota
	// Structural violations break the chain itself.
	Structural
	// Authenticity violations carry signatures nobody could have produced.
	Authenticity
	// Policy violations fail a defense rule and may drive escalation.
	Policy
	// Configuration errors come from invalid rules.
	Configuration
)

func (k ErrorKind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Authenticity:
		return "authenticity"
	case Policy:
		return "policy"
	case Configuration:
		return "configuration"
	}
	return "unclassified"
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Kind classifies a rejection error. Wrapped errors are unwrapped.
func Kind(err error) ErrorKind {
	var (
		hashErr     *HashMismatchError
		inconsErr   *InconsistentKeyError
		forgedErr   *ForgedSignatureError
		shortErr    *ChainTooShortError
		cblErr      *ConsecutiveLimitError
		stakeErr    *InsufficientStakeError
		unknownMode *UnknownModeError
	)
	switch {
	case err == nil:
		return Unclassified
	case errors.As(err, &hashErr):
		return Structural
	case errors.As(err, &inconsErr), errors.As(err, &forgedErr):
		return Authenticity
	case errors.As(err, &shortErr), errors.As(err, &cblErr), errors.As(err, &stakeErr):
		return Policy
	case errors.As(err, &unknownMode):
		return Configuration
	}
	return Unclassified
}
