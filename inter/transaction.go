package inter

import (
	"strings"
)

// ForgedSignaturePrefix marks a signature token produced by someone other than
// the key holder. A token like "stolen_sig_alice" is a forgery of Alice's
// signature made with a recovered private key.
const ForgedSignaturePrefix = "stolen_"

// Transaction moves Amount from one identity to another. Transactions are values:
// once built they are copied into blocks and never modified.
type Transaction struct {
	// ID is unique across the simulation, e.g. "tx_honest_1".
	ID string `json:"tx_id"`

	// From and To are identity names resolved against the wallet registry.
	// A name that is not registered is allowed (permissionless entry).
	From string `json:"from"`
	To   string `json:"to"`

	// Amount is never negative.
	Amount uint64 `json:"amount"`

	// Signature is an opaque token, no cryptography is performed on it.
	Signature string `json:"signature"`

	// Valid records the signer's own view of the signature when the
	// transaction was created.
	Valid bool `json:"is_valid"`
}

// NewTransaction builds a transaction flagged as valid by its creator.
func NewTransaction(id, from, to string, amount uint64, signature string) Transaction {
	return Transaction{
		ID:        id,
		From:      from,
		To:        to,
		Amount:    amount,
		Signature: signature,
		Valid:     true,
	}
}

// Forged reports whether the signature token denotes a forgery.
func (tx Transaction) Forged() bool {
	return strings.HasPrefix(tx.Signature, ForgedSignaturePrefix)
}

// SignaturePreview returns the first 16 characters of the signature followed by
// an ellipsis, the way snapshots display it.
func (tx Transaction) SignaturePreview() string {
	if len(tx.Signature) <= 16 {
		return tx.Signature
	}
	return tx.Signature[:16] + "..."
}

// copyTransactions returns a fresh slice so callers cannot alias block contents.
func copyTransactions(txs []Transaction) []Transaction {
	if len(txs) == 0 {
		return nil
	}
	cp := make([]Transaction, len(txs))
	copy(cp, txs)
	return cp
}
