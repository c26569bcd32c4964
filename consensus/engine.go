// Package consensus implements the fork validation engine.
//
// ValidateFork decides whether a candidate chain may replace the canonical
// chain. Checks run in a fixed order and the first failure decides:
//
//  1. hash-chain integrity of the candidate
//  2. authenticity of every candidate transaction against its sender's key
//  3. the defense rule of the active posture: consecutive-block limit,
//     stake weighting, longest chain, or a combination
//
// The engine is stateless. It reads wallets through Registry and never
// modifies them; penalties are returned in the Verdict for the caller to apply.

package consensus

import (
	"fmt"

	"github.com/rony4d/go-opera-forksim/identity"
	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/rules"
)

// Registry is the read-only view of the wallet set the engine needs.
type Registry interface {
	Get(name string) (*identity.Wallet, bool)
	StakeOf(name string) uint64
	Principal(name string) string
}

// Rule names the check that decided a verdict.
type Rule string

const (
	RuleIntegrity    Rule = "integrity"
	RuleAuthenticity Rule = "authenticity"
	RuleConsecutive  Rule = "consecutive_limit"
	RuleStake        Rule = "stake_weight"
	RuleLongest      Rule = "longest_chain"
	RuleMode         Rule = "mode"
)

// Slash is a penalty the caller must apply after a rejection.
type Slash struct {
	Identity  string `json:"identity"`
	Principal string `json:"principal"`
	Penalty   uint64 `json:"penalty"`
}

// Verdict is the outcome of a validation.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Rule     Rule   `json:"rule"`
	Reason   string `json:"reason"`
	// Err is the typed rejection, nil when accepted.
	Err     error   `json:"-"`
	Slashes []Slash `json:"slashes,omitempty"`

	// Weights are only set by the stake rule. HonestWeight includes BackingWeight.
	AttackWeight  uint64 `json:"attack_weight,omitempty"`
	HonestWeight  uint64 `json:"honest_weight,omitempty"`
	BackingWeight uint64 `json:"backing_weight,omitempty"`
}

// Slashed returns the names of the penalised identities, each once.
func (v Verdict) Slashed() []string {
	if len(v.Slashes) == 0 {
		return nil
	}
	var (
		names []string
		seen  = make(map[string]bool, len(v.Slashes))
	)
	for _, s := range v.Slashes {
		if !seen[s.Identity] {
			seen[s.Identity] = true
			names = append(names, s.Identity)
		}
	}
	return names
}

// Kind classifies the rejection, Unclassified when accepted.
func (v Verdict) Kind() ErrorKind {
	return Kind(v.Err)
}

// ValidateFork decides between candidate and canonical under r. sink may be nil.
func ValidateFork(candidate, canonical *inter.Chain, r rules.Rules, wallets Registry, sink Sink) Verdict {
	v := validator{
		candidate: candidate,
		canonical: canonical,
		rules:     r,
		wallets:   wallets,
		sink:      sink,
	}
	verdict := v.run()
	if verdict.Accepted {
		v.step(StageDecision, StatusPassed, verdict.Reason)
	} else {
		v.step(StageDecision, StatusFailed, verdict.Reason)
	}
	return verdict
}

type validator struct {
	candidate *inter.Chain
	canonical *inter.Chain
	rules     rules.Rules
	wallets   Registry
	sink      Sink
}

func (v *validator) step(stage string, status Status, detail string) {
	if v.sink != nil {
		v.sink.Step(Step{Stage: stage, Status: status, Detail: detail})
	}
}

func reject(rule Rule, err error) Verdict {
	return Verdict{Rule: rule, Reason: err.Error(), Err: err}
}

func (v *validator) run() Verdict {
	v.step(StageIntegrity, StatusChecking, fmt.Sprintf("verifying %d parent links", v.candidate.Len()-1))
	if err := checkIntegrity(v.candidate); err != nil {
		v.step(StageIntegrity, StatusFailed, err.Error())
		return reject(RuleIntegrity, err)
	}
	v.step(StageIntegrity, StatusPassed, "all blocks link to their parent")

	v.step(StageAuthenticity, StatusChecking, "verifying signatures against key schemes")
	if err := checkAuthenticity(v.candidate, v.wallets); err != nil {
		v.step(StageAuthenticity, StatusFailed, err.Error())
		return reject(RuleAuthenticity, err)
	}
	v.step(StageAuthenticity, StatusPassed, "all transactions authentic")

	if !v.rules.Mode.Valid() {
		err := &UnknownModeError{Mode: string(v.rules.Mode)}
		v.step(StageMode, StatusFailed, err.Error())
		return reject(RuleMode, err)
	}

	if v.rules.Consecutive {
		v.step(StageConsecutive, StatusChecking, fmt.Sprintf("miners %v, limit %d", v.candidate.Miners(), v.rules.ConsecutiveLimit))
		if err := checkConsecutive(v.candidate, v.rules.ConsecutiveLimit); err != nil {
			v.step(StageConsecutive, StatusFailed, err.Error())
			return reject(RuleConsecutive, err)
		}
		v.step(StageConsecutive, StatusPassed, "no run exceeds the limit")
	}

	if v.rules.Stake {
		return v.stakeRule()
	}
	return v.longestRule()
}

func (v *validator) longestRule() Verdict {
	c, h := v.candidate.Len(), v.canonical.Len()
	v.step(StageLongest, StatusChecking, fmt.Sprintf("candidate %d blocks, canonical %d blocks", c, h))
	if c <= h {
		err := &ChainTooShortError{Candidate: c, Canonical: h}
		v.step(StageLongest, StatusFailed, err.Error())
		return reject(RuleLongest, err)
	}
	reason := "Longest chain accepted"
	if v.rules.Consecutive {
		reason = "Longest chain accepted (CBL passed)"
	}
	v.step(StageLongest, StatusPassed, reason)
	return Verdict{Accepted: true, Rule: RuleLongest, Reason: reason}
}
