package sim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/identity"
	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/inter/walletpk"
	"github.com/rony4d/go-opera-forksim/rules"
)

// Failure messages of the commands.
const (
	MsgNoHashPower  = "Must acquire 51% hash power first"
	MsgNotCracked   = "Must crack Alice's key first"
	MsgUncrackable  = "ECC is uncrackable"
	MsgCracked      = "Alice's key already cracked"
	MsgNoAttackFork = "no attack chain to broadcast"
)

// MineHonestBlock appends an empty block to the canonical chain. An empty
// miner name picks one of Miner1..Miner3 by chain length.
func (s *Simulation) MineHonestBlock(miner string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("mine_honest_block")
	return s.mineHonest(miner)
}

// MineHonestBlocks mines n honest blocks and returns the last outcome.
func (s *Simulation) MineHonestBlocks(n int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("mine_honest_blocks")
	out := Outcome{Success: true, Message: "no blocks mined"}
	for i := 0; i < n; i++ {
		out = s.mineHonest("")
	}
	return out
}

func (s *Simulation) mineHonest(miner string) Outcome {
	if miner == "" {
		miner = fmt.Sprintf("Miner%d", 1+s.canonical.Len()%3)
	}
	s.tracker.Add("Determine Miner", consensus.StatusPassed, "Miner: "+miner)

	b := s.canonical.Append(miner, nil)
	s.tracker.Add("Mine Block", consensus.StatusPassed, fmt.Sprintf("Block %d mined", b.Index()))
	s.journal.Addf("NETWORK", "%s mined block %d on honest chain (height %d)", miner, b.Index(), s.canonical.Len())
	s.log.WithFields(logrus.Fields{"miner": miner, "index": b.Index()}).Debug("Honest block mined")

	s.checkProofEvents()
	return Outcome{Success: true, Message: fmt.Sprintf("Mined honest block %d", b.Index()), Block: blockView(b)}
}

// CrackKey recovers the victim's private key from the public key.
func (s *Simulation) CrackKey() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("crack_key")
	victim := s.wallets.MustGet(Victim)
	s.tracker.Add("Check Key Scheme", consensus.StatusChecking, victim.PubKey.Scheme())
	s.journal.Addf("EVE", "Attempting to recover %s's %s key", Victim, victim.PubKey.Scheme())

	start := time.Now()
	key, err := s.wallets.AttemptKeyRecovery(Victim)
	switch {
	case errors.Is(err, walletpk.ErrUncrackable):
		s.journal.Addf("EVE", "FAILED: ECC cryptography is computationally secure")
		return s.fail("Attempt Key Recovery", MsgUncrackable)
	case errors.Is(err, identity.ErrAlreadyCompromised):
		return s.fail("Check Already Cracked", MsgCracked)
	case err != nil:
		return s.fail("Attempt Key Recovery", err.Error())
	}
	elapsed := time.Since(start)

	s.victimCracked = true
	s.tracker.Add("Factorize Modulus", consensus.StatusPassed, fmt.Sprintf("Found p=%d, q=%d", key.P, key.Q))
	s.tracker.Add("Calculate Private Key", consensus.StatusPassed, fmt.Sprintf("d=%d", key.D))
	s.journal.Addf("EVE", "SUCCESS! Recovered private key %s in %s", key, elapsed)
	s.journal.Addf("EVE", "%s's wallet is now COMPROMISED", Victim)
	s.log.WithField("identity", Victim).Info("Key recovered")

	return Outcome{Success: true, Message: fmt.Sprintf("Key cracked in %.2fms (d=%d)", float64(elapsed.Microseconds())/1000, key.D)}
}

// AcquireHashPower gives the adversary a 51% majority.
func (s *Simulation) AcquireHashPower() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("acquire_hash_power")
	before := s.hashPower.Adversary
	s.hashPower = HashPower{Honest: 100 - MajorityHashPower, Adversary: MajorityHashPower}
	s.tracker.Add("Update Hash Power", consensus.StatusPassed,
		fmt.Sprintf("Eve: %d%% -> %d%%, Honest: %d%%", before, s.hashPower.Adversary, s.hashPower.Honest))
	s.journal.Addf("EVE", "Now controlling %d%% of network hash power", s.hashPower.Adversary)
	return Outcome{Success: true, Message: fmt.Sprintf("Acquired %d%% hash power", MajorityHashPower)}
}

// EnableSybil makes the adversary mine under alternating sub-identities.
func (s *Simulation) EnableSybil() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("enable_sybil")
	a, b, err := s.wallets.SplitIdentity(Adversary)
	if err != nil {
		return s.fail("Split Identity", err.Error())
	}
	s.sybil = true
	s.tracker.Add("Split Identity", consensus.StatusPassed, fmt.Sprintf("%s stake %d, %s stake %d", a.Name, a.Stake, b.Name, b.Stake))
	s.journal.Addf("EVE", "Created Sybil identities %s (stake %d) and %s (stake %d)", a.Name, a.Stake, b.Name, b.Stake)
	return Outcome{Success: true, Message: "Sybil attack enabled"}
}

// MineAttackBlock extends the private fork by one block.
func (s *Simulation) MineAttackBlock() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("mine_attack_block")
	return s.mineAttack()
}

// MineAttackBlocks mines n attack blocks, stopping at the first failure.
func (s *Simulation) MineAttackBlocks(n int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("mine_attack_blocks")
	out := Outcome{Success: true, Message: "no blocks mined"}
	for i := 0; i < n; i++ {
		if out = s.mineAttack(); !out.Success {
			break
		}
	}
	return out
}

func (s *Simulation) mineAttack() Outcome {
	s.tracker.Add("Check Hash Power", consensus.StatusChecking, fmt.Sprintf("Eve: %d%%", s.hashPower.Adversary))
	if s.hashPower.Adversary < MajorityHashPower {
		return s.fail("Check Hash Power", MsgNoHashPower)
	}
	if !s.rules.UsesUncrackableKeys() && !s.victimCracked {
		return s.fail("Check Key Status", MsgNotCracked)
	}

	if s.candidate == nil {
		s.candidate = s.canonical.Fork()
		s.tracker.Add("Initialize Attack Chain", consensus.StatusPassed, "Created fork from genesis")
		s.journal.Addf("EVE", "Creating secret fork from genesis block")
	}

	height := s.candidate.Len()
	var txs []inter.Transaction
	if height == 1 {
		tx := s.doubleSpend()
		s.t2 = tx.ID
		txs = []inter.Transaction{tx}
		s.tracker.Add("Create Transaction", consensus.StatusPassed, fmt.Sprintf("%s -> %s %d (double spend)", tx.From, tx.To, tx.Amount))
		s.journal.Addf("EVE", "Creating double spend %s: %s -> %s %d", tx.ID, tx.From, tx.To, tx.Amount)
	}

	miner := Adversary
	if s.sybilMining() {
		a, b, err := s.wallets.SplitIdentity(Adversary)
		if err != nil {
			return s.fail("Determine Miner", err.Error())
		}
		miner = b.Name
		if height%2 == 1 {
			miner = a.Name
		}
	}
	s.tracker.Add("Determine Miner", consensus.StatusPassed, "Miner: "+miner)

	blk := s.candidate.Append(miner, txs)
	s.journal.Addf("EVE", "%s mined attack block %d (attack chain %d, honest chain %d)", miner, blk.Index(), s.candidate.Len(), s.canonical.Len())
	s.log.WithFields(logrus.Fields{"miner": miner, "index": blk.Index()}).Debug("Attack block mined")

	s.checkProofEvents()
	return Outcome{Success: true, Message: fmt.Sprintf("Mined attack block %d", blk.Index()), Block: blockView(blk)}
}

// doubleSpend returns the conflicting transaction of the first attack block.
// With factorable keys the adversary forges a transfer from the victim; with
// uncrackable keys it can only respend its own funds.
func (s *Simulation) doubleSpend() inter.Transaction {
	if s.rules.UsesUncrackableKeys() {
		return inter.NewTransaction(selfSpendID, Adversary, Adversary, selfSpend, selfSpendSig)
	}
	return inter.NewTransaction(theftID, Victim, Adversary, theftAmount, theftSig)
}

func (s *Simulation) sybilMining() bool {
	switch s.rules.Mode {
	case rules.StakeCBL:
		return true
	case rules.CBL, rules.Hybrid:
		return s.sybil
	}
	return false
}

// Broadcast submits the private fork to the network.
func (s *Simulation) Broadcast() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("broadcast_chain")
	if s.candidate.Len() <= 1 {
		return s.fail("Validate Attack Chain", MsgNoAttackFork)
	}

	s.checkProofEvents()
	s.journal.Addf("NETWORK", "Broadcasting attack chain: %d blocks vs honest %d, mode %s, miners %s",
		s.candidate.Len(), s.canonical.Len(), s.rules.Mode, strings.Join(s.candidate.Miners(), ", "))

	sink := consensus.MultiSink{s.tracker, LogSink{Log: s.log}, s.sink}
	verdict := consensus.ValidateFork(s.candidate, s.canonical, s.rules.Copy(), s.wallets, sink)
	slashed := s.applySlashes(verdict)

	out := Outcome{Success: verdict.Accepted, Message: verdict.Reason, Slashed: slashed, Verdict: &verdict}
	log := s.log.WithFields(logrus.Fields{
		"mode":     s.rules.Mode,
		"accepted": verdict.Accepted,
		"rule":     verdict.Rule,
	})

	if verdict.Accepted {
		old := s.canonical
		s.canonical = s.candidate
		out.Reorganized = true
		s.markProof(NetworkReorg, fmt.Sprintf("Honest nodes accept attack chain (height %d)", s.canonical.Len()))
		if old.Contains(s.t1) && !s.canonical.Contains(s.t1) && s.t2 != "" && s.canonical.Contains(s.t2) {
			s.markProof(FinalReversal, "T1 reversed (no longer confirmed), T2 now confirmed")
		}
		s.journal.Addf("NETWORK", "CHAIN ACCEPTED: %s", verdict.Reason)
		log.Info("Fork accepted")
	} else {
		var cbl *consensus.ConsecutiveLimitError
		if errors.As(verdict.Err, &cbl) {
			s.sybil = true
			s.journal.Addf("EVE", "Attack blocked by CBL, switching to Sybil identities")
		}
		s.journal.Addf("NETWORK", "CHAIN REJECTED: %s", verdict.Reason)
		if len(slashed) > 0 {
			s.journal.Addf("NETWORK", "Stake slashed for: %s", strings.Join(slashed, ", "))
		}
		log.WithField("kind", verdict.Kind()).Info("Fork rejected")
	}

	s.candidate = nil
	s.wallets.ReplayBalances(s.canonical)
	return out
}

// applySlashes applies the verdict's penalties, and nothing else.
func (s *Simulation) applySlashes(v consensus.Verdict) []string {
	for _, sl := range v.Slashes {
		removed, err := s.wallets.Slash(sl.Identity, sl.Penalty)
		if err != nil {
			s.log.WithError(err).Warn("Slash skipped")
			continue
		}
		s.tracker.Add("Apply Slashing", consensus.StatusFailed, fmt.Sprintf("%s stake -%d", sl.Identity, removed))
	}
	return v.Slashed()
}

// SetDefenseMode switches to the preset of mode. When the new preset uses a
// different key scheme the principal wallets are regenerated, which drops
// sub-identity wallets and any key compromise.
func (s *Simulation) SetDefenseMode(mode rules.DefenseMode) (Outcome, error) {
	next, err := rules.ForMode(mode)
	if err != nil {
		return Outcome{Success: false, Message: err.Error()}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("set_defense_mode")
	prev := s.rules
	s.rules = s.cfg.Rules.Apply(next)
	s.tracker.Add("Set Defense Mode", consensus.StatusPassed, fmt.Sprintf("Mode: %s -> %s", prev.Mode, s.rules.Mode))

	if prev.KeyScheme != s.rules.KeyScheme {
		s.wallets.RemoveSubIdentities()
		if err := s.createPrincipals(); err != nil {
			s.rules = prev
			return s.fail("Upgrade Keys", err.Error()), err
		}
		s.victimCracked = false
		s.wallets.ReplayBalances(s.canonical)
		scheme := walletpk.SchemeName(s.rules.KeyScheme)
		s.tracker.Add("Upgrade Keys", consensus.StatusPassed, "All wallets regenerated with "+scheme)
		s.journal.Addf("NETWORK", "All wallets regenerated with %s keys", scheme)
	}
	if s.rules.Mode == rules.CBL {
		s.sybil = false
	}

	s.journal.Addf("NETWORK", "=== %s DEFENSE ACTIVATED ===", s.rules.Mode)
	s.log.WithFields(logrus.Fields{"from": prev.Mode, "to": s.rules.Mode}).Info("Defense mode changed")
	return Outcome{Success: true, Message: fmt.Sprintf("%s enabled", s.rules.Mode)}, nil
}
