package consensus

import (
	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/inter/walletpk"
)

// checkIntegrity returns the first block whose parent hash does not match its
// predecessor.
func checkIntegrity(chain *inter.Chain) error {
	blocks := chain.Blocks()
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PrevHash() != blocks[i-1].Hash() {
			return &HashMismatchError{Index: i}
		}
	}
	return nil
}

// checkAuthenticity verifies each transaction against the key scheme of its
// sender. Senders without a wallet are tolerated.
func checkAuthenticity(chain *inter.Chain, wallets Registry) error {
	var err error
	chain.ForEachTransaction(func(_ *inter.Block, tx inter.Transaction) {
		if err != nil {
			return
		}
		sender, ok := wallets.Get(tx.From)
		if !ok {
			return
		}
		switch sender.Scheme() {
		case walletpk.Types.Uncrackable:
			if sender.Compromised {
				err = &InconsistentKeyError{TxID: tx.ID, Sender: tx.From}
			}
		case walletpk.Types.Factorable:
			if !sender.Compromised && tx.Forged() {
				err = &ForgedSignatureError{TxID: tx.ID, Sender: tx.From}
			}
		}
	})
	return err
}

// checkConsecutive scans the non-genesis blocks for the first run of one miner
// longer than limit and reports the full length of that run.
func checkConsecutive(chain *inter.Chain, limit int) error {
	miners := chain.Miners()
	for start := 0; start < len(miners); {
		end := start + 1
		for end < len(miners) && miners[end] == miners[start] {
			end++
		}
		if run := end - start; run > limit {
			return &ConsecutiveLimitError{Miner: miners[start], Run: run, Limit: limit}
		}
		start = end
	}
	return nil
}
