package sim

import (
	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/identity"
	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/rules"
)

// Outcome is the result of a command.
type Outcome struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	Slashed     []string   `json:"slashed,omitempty"`
	Reorganized bool       `json:"reorganized,omitempty"`
	Block       *BlockView `json:"block,omitempty"`
	// Verdict is set by Broadcast once the engine ran.
	Verdict *consensus.Verdict `json:"verdict,omitempty"`
}

// TxView is the display form of a transaction.
type TxView struct {
	ID        string `json:"tx_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
	Valid     bool   `json:"is_valid"`
}

// BlockView is the display form of a block with shortened hashes.
type BlockView struct {
	Index        uint64   `json:"index"`
	Hash         string   `json:"hash"`
	PrevHash     string   `json:"prev_hash"`
	Miner        string   `json:"miner"`
	Timestamp    string   `json:"timestamp"`
	Transactions []TxView `json:"transactions"`
}

const shortHashLen = 16

func blockView(b *inter.Block) *BlockView {
	v := &BlockView{
		Index:        uint64(b.Index()),
		Hash:         inter.ShortHex(b.Hash(), shortHashLen),
		PrevHash:     inter.ShortHex(b.PrevHash(), shortHashLen),
		Miner:        b.Miner(),
		Timestamp:    b.Time().String(),
		Transactions: make([]TxView, 0, b.TxCount()),
	}
	for _, tx := range b.Transactions() {
		v.Transactions = append(v.Transactions, TxView{
			ID:        tx.ID,
			From:      tx.From,
			To:        tx.To,
			Amount:    tx.Amount,
			Signature: tx.SignaturePreview(),
			Valid:     tx.Valid,
		})
	}
	return v
}

func chainView(c *inter.Chain) []BlockView {
	views := make([]BlockView, 0, c.Len())
	if c == nil {
		return views
	}
	for _, b := range c.Blocks() {
		views = append(views, *blockView(b))
	}
	return views
}

// State is a read-only snapshot of a simulation.
type State struct {
	Wallets       []identity.WalletView `json:"wallets"`
	Canonical     []BlockView           `json:"honest_chain"`
	Candidate     []BlockView           `json:"attack_chain"`
	DefenseMode   rules.DefenseMode     `json:"defense_mode"`
	Rules         rules.Rules           `json:"rules"`
	VictimCracked bool                  `json:"alice_cracked"`
	Sybil         bool                  `json:"use_sybil"`
	HashPower     HashPower             `json:"hash_power"`
	ProofEvents   ProofEvents           `json:"proof_events"`
	Steps         []TrackedStep         `json:"execution_steps"`
	Journal       []string              `json:"logs"`
}

// Wallet returns the view of the named wallet.
func (st State) Wallet(name string) (identity.WalletView, bool) {
	for _, w := range st.Wallets {
		if w.Name == name {
			return w, true
		}
	}
	return identity.WalletView{}, false
}
