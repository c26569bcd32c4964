package sim

import (
	"github.com/rony4d/go-opera-forksim/inter"
)

// ProofEvent is one milestone of a double-spend attack.
type ProofEvent uint8

const (
	InitialSpendConfirmed ProofEvent = iota
	PrivateChainLead
	ConflictingTxIncluded
	NetworkReorg
	FinalReversal
)

func (e ProofEvent) String() string {
	switch e {
	case InitialSpendConfirmed:
		return "Initial Spend Confirmation"
	case PrivateChainLead:
		return "Private Chain Lead"
	case ConflictingTxIncluded:
		return "Conflicting Transaction Inclusion"
	case NetworkReorg:
		return "Network Reorganization"
	case FinalReversal:
		return "Final Transaction Reversal"
	}
	return "unknown"
}

// ProofLogEntry records when and why a milestone was reached.
type ProofLogEntry struct {
	Event   string          `json:"event"`
	Status  string          `json:"status"`
	Details string          `json:"details"`
	Time    inter.Timestamp `json:"timestamp"`
}

// ProofEvents are monotonic: once set, a milestone stays set until reset.
// They are observational and never influence consensus.
type ProofEvents struct {
	InitialSpendConfirmed bool            `json:"initial_spend_confirmed"`
	PrivateChainLead      bool            `json:"private_chain_lead"`
	ConflictingTxIncluded bool            `json:"conflicting_tx_included"`
	NetworkReorg          bool            `json:"network_reorg"`
	FinalReversal         bool            `json:"final_reversal"`
	Log                   []ProofLogEntry `json:"event_log"`
}

func (p *ProofEvents) flag(e ProofEvent) *bool {
	switch e {
	case InitialSpendConfirmed:
		return &p.InitialSpendConfirmed
	case PrivateChainLead:
		return &p.PrivateChainLead
	case ConflictingTxIncluded:
		return &p.ConflictingTxIncluded
	case NetworkReorg:
		return &p.NetworkReorg
	case FinalReversal:
		return &p.FinalReversal
	}
	return nil
}

// Has reports whether milestone e was reached.
func (p *ProofEvents) Has(e ProofEvent) bool {
	f := p.flag(e)
	return f != nil && *f
}

// Count returns the number of reached milestones.
func (p *ProofEvents) Count() int {
	n := 0
	for e := InitialSpendConfirmed; e <= FinalReversal; e++ {
		if p.Has(e) {
			n++
		}
	}
	return n
}

// mark sets e and logs it, reporting false when it was already set.
func (p *ProofEvents) mark(e ProofEvent, details string) bool {
	f := p.flag(e)
	if f == nil || *f {
		return false
	}
	*f = true
	p.Log = append(p.Log, ProofLogEntry{Event: e.String(), Status: "passed", Details: details, Time: inter.Now()})
	return true
}

func (p ProofEvents) copy() ProofEvents {
	p.Log = append([]ProofLogEntry(nil), p.Log...)
	return p
}
