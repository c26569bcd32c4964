package consensus

import (
	"fmt"
)

// chainWeight sums the stake attributed to the miner of every non-genesis block.
func chainWeight(miners []string, wallets Registry) uint64 {
	var w uint64
	for _, m := range miners {
		w += wallets.StakeOf(m)
	}
	return w
}

func (v *validator) stakeRule() Verdict {
	attackMiners := v.candidate.Miners()
	attack := chainWeight(attackMiners, v.wallets)
	honest := chainWeight(v.canonical.Miners(), v.wallets)

	var backing uint64
	for _, name := range v.rules.BackingIdentities {
		backing += v.wallets.StakeOf(name)
	}
	honest += backing

	v.step(StageStake, StatusChecking, fmt.Sprintf("attack=%d, honest=%d (including %d stakeholder backing)", attack, honest, backing))

	if attack >= honest {
		reason := fmt.Sprintf("Attack chain accepted by stake weight: attack=%d >= honest=%d", attack, honest)
		v.step(StageStake, StatusPassed, reason)
		return Verdict{
			Accepted:      true,
			Rule:          RuleStake,
			Reason:        reason,
			AttackWeight:  attack,
			HonestWeight:  honest,
			BackingWeight: backing,
		}
	}

	err := &InsufficientStakeError{Attack: attack, Honest: honest, Backing: backing}
	verdict := reject(RuleStake, err)
	verdict.AttackWeight = attack
	verdict.HonestWeight = honest
	verdict.BackingWeight = backing
	verdict.Slashes = v.slashes(attackMiners)
	v.step(StageStake, StatusFailed, err.Error())
	for _, s := range verdict.Slashes {
		v.step(StageStake, StatusFailed, fmt.Sprintf("slashing %s by %d", s.Identity, s.Penalty))
	}
	return verdict
}

// slashes lists the penalties for a rejected fork, in order of first
// appearance. Every distinct adversarial miner is charged: principals the
// primary penalty, sub-identities the Sybil penalty. A sub-identity whose
// wallet no longer exists is charged to its parent. Each parent of a Sybil
// miner is also charged the primary penalty once, unless it already mined
// directly.
func (v *validator) slashes(miners []string) []Slash {
	var (
		out     []Slash
		seen    = make(map[string]bool)
		primary = make(map[string]bool)
		parents []string
	)
	adversary := func(name string) bool {
		w, ok := v.wallets.Get(name)
		return ok && w.Adversarial()
	}
	for _, m := range miners {
		if seen[m] {
			continue
		}
		seen[m] = true

		principal := v.wallets.Principal(m)
		w, ok := v.wallets.Get(m)
		switch {
		case ok && !w.Adversarial():
			continue
		case ok && principal == m && !w.IsSubIdentity():
			primary[m] = true
			out = append(out, Slash{Identity: m, Principal: m, Penalty: v.rules.PrimaryPenalty})
			continue
		case ok:
			out = append(out, Slash{Identity: m, Principal: principal, Penalty: v.rules.SybilPenalty})
		case principal != m && adversary(principal):
			out = append(out, Slash{Identity: principal, Principal: principal, Penalty: v.rules.SybilPenalty})
		default:
			continue
		}
		if principal != m {
			parents = append(parents, principal)
		}
	}
	for _, p := range parents {
		if primary[p] || !adversary(p) {
			continue
		}
		primary[p] = true
		out = append(out, Slash{Identity: p, Principal: p, Penalty: v.rules.PrimaryPenalty})
	}
	return out
}
