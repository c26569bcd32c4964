// Package sim drives one attack simulation: it owns the canonical chain, the
// adversary's private fork and the wallet registry, runs the attack commands
// and asks the consensus engine to arbitrate when the fork is broadcast.
//
// A Simulation is safe for concurrent use; every command holds its lock for
// the whole command, so commands are applied one at a time.

package sim

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/identity"
	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/rules"
)

// Actors of the default world.
const (
	Victim    = "Alice"
	Recipient = "Bob"
	Adversary = "Eve"
)

// Seed transaction and double-spend parameters.
const (
	initialSpendID  = "tx_honest_1"
	initialSpendSig = "alice_sig_1"
	initialSpend    = 10

	theftID     = "tx_attack_alice"
	theftSig    = "stolen_sig_alice"
	theftAmount = 100

	selfSpendID  = "tx_attack_eve"
	selfSpendSig = "eve_sig_1"
	selfSpend    = 10
)

// MajorityHashPower is the share the adversary needs to outpace honest miners.
const MajorityHashPower = 51

type principal struct {
	name    string
	balance int64
	stake   uint64
	role    identity.Role
}

var principals = []principal{
	{Victim, 100, 5000, identity.RoleHonest},
	{Recipient, 50, 5000, identity.RoleHonest},
	{Adversary, 10, 200, identity.RoleAdversary},
}

// HashPower is the percentage of mining power per side.
type HashPower struct {
	Honest    int `json:"Honest"`
	Adversary int `json:"Eve"`
}

// Simulation is one isolated attack session.
type Simulation struct {
	mu sync.Mutex

	cfg  Config
	log  logrus.FieldLogger
	sink consensus.Sink

	canonical *inter.Chain
	candidate *inter.Chain
	wallets   *identity.Registry
	rules     rules.Rules

	sybil         bool
	victimCracked bool
	hashPower     HashPower

	// Ids of the honest spend and the conflicting spend.
	t1, t2 string

	proof   ProofEvents
	tracker *Tracker
	journal *Journal
}

// New creates a simulation in its default state. It fails when the
// configured mode is unknown or key generation fails.
func New(opts ...Option) (*Simulation, error) {
	s := &Simulation{
		cfg: DefaultConfig(),
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = NewTracker(s.cfg.StepLimit)
	s.journal = NewJournal(s.cfg.JournalLimit)
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset restores the default state.
func (s *Simulation) Reset() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Begin("reset")
	s.tracker.Add("Reset Simulation", consensus.StatusChecking, "Resetting to initial state")
	if err := s.reset(); err != nil {
		return s.fail("Reset Simulation", err.Error())
	}
	s.tracker.Add("Reset Simulation", consensus.StatusPassed, "All state cleared")
	s.journal.Addf("SYSTEM", "Simulation reset to initial state")
	return Outcome{Success: true, Message: "Simulation reset"}
}

func (s *Simulation) reset() error {
	base := rules.LegacyRules()
	if s.cfg.Mode != "" {
		r, err := rules.ForMode(s.cfg.Mode)
		if err != nil {
			return err
		}
		base = r
	}
	s.rules = s.cfg.Rules.Apply(base)
	s.wallets = identity.NewRegistry()
	if err := s.createPrincipals(); err != nil {
		return err
	}

	s.canonical = inter.NewChain()
	s.canonical.Append("Miner1", []inter.Transaction{
		inter.NewTransaction(initialSpendID, Victim, Recipient, initialSpend, initialSpendSig),
	})
	s.candidate = nil
	s.wallets.ReplayBalances(s.canonical)

	s.sybil = false
	s.victimCracked = false
	s.hashPower = HashPower{Honest: 50, Adversary: 0}
	s.t1, s.t2 = initialSpendID, ""
	s.proof = ProofEvents{}

	s.journal.clear()
	s.journal.Addf("SYSTEM", "Network: %s", s.rules.Mode)
	for _, p := range principals {
		s.journal.Addf("SYSTEM", "%s: %d, stake %d", p.name, p.balance, p.stake)
	}
	s.log.WithField("mode", s.rules.Mode).Debug("Simulation reset")
	return nil
}

// createPrincipals (re)creates Alice, Bob and Eve with the current key scheme.
func (s *Simulation) createPrincipals() error {
	for _, p := range principals {
		if _, err := s.wallets.CreateWallet(p.name, p.balance, p.stake, s.rules.KeyScheme, p.role); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns a copy of the active rules.
func (s *Simulation) Rules() rules.Rules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.Copy()
}

// Mode returns the active defense mode.
func (s *Simulation) Mode() rules.DefenseMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.Mode
}

// Wallet returns a copy of the named wallet.
func (s *Simulation) Wallet(name string) (identity.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets.Get(name)
	if !ok {
		return identity.Wallet{}, false
	}
	return *w.Copy(), true
}

// CanonicalLen returns the length of the canonical chain including genesis.
func (s *Simulation) CanonicalLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical.Len()
}

// CandidateLen returns the length of the private fork, 0 when there is none.
func (s *Simulation) CandidateLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidate.Len()
}

// Proof returns a copy of the milestones reached so far.
func (s *Simulation) Proof() ProofEvents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proof.copy()
}

// fail records a failed step and returns the failure outcome.
func (s *Simulation) fail(stage, message string) Outcome {
	s.tracker.Add(stage, consensus.StatusFailed, message)
	s.tracker.Add("Result: FAILED", consensus.StatusFailed, message)
	return Outcome{Success: false, Message: message}
}

// checkProofEvents evaluates the milestones that depend on chain contents.
func (s *Simulation) checkProofEvents() {
	h := s.canonical.Len()
	if h >= s.cfg.ConfirmationDepth+1 && s.canonical.Contains(s.t1) {
		s.markProof(InitialSpendConfirmed, fmt.Sprintf("T1 (%s) confirmed with %d confirmations", s.t1, h-1))
	}

	if s.candidate == nil {
		return
	}
	c := s.candidate.Len()
	if c >= h+s.cfg.LeadTarget {
		s.markProof(PrivateChainLead, fmt.Sprintf("Attack chain height %d >= honest %d + %d", c, h, s.cfg.LeadTarget))
	}
	if s.t2 != "" && s.candidate.Contains(s.t2) && !s.candidate.Contains(s.t1) {
		s.markProof(ConflictingTxIncluded, fmt.Sprintf("T2 (%s) in attack chain, T1 excluded", s.t2))
	}
}

func (s *Simulation) markProof(e ProofEvent, details string) {
	if s.proof.mark(e, details) {
		s.journal.Addf("PROOF", "Event %d: %s (%s)", int(e)+1, e, details)
		s.log.WithField("event", e.String()).Info("Proof event reached")
	}
}

// Snapshot returns a read-only view of the whole simulation.
func (s *Simulation) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Wallets:       s.wallets.Snapshot(),
		Canonical:     chainView(s.canonical),
		Candidate:     chainView(s.candidate),
		DefenseMode:   s.rules.Mode,
		Rules:         s.rules.Copy(),
		VictimCracked: s.victimCracked,
		Sybil:         s.sybil,
		HashPower:     s.hashPower,
		ProofEvents:   s.proof.copy(),
		Steps:         s.tracker.Steps(),
		Journal:       s.journal.Lines(),
	}
}
