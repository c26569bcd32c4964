// Package inter defines the ledger primitives of the simulator: transactions,
// blocks and chains. This file contains the Block structure.
//
// Key concepts:
//   - Block: an immutable container of transactions mined by a named identity
//   - PrevHash: the hash link to the parent block, all zeros for genesis
//   - Hash: Keccak-256 over the RLP encoding of the block contents
//
// Usage:
//
//	chain := inter.NewChain()
//	block := chain.Append("Miner1", []inter.Transaction{tx})
//	fmt.Println(block.Index(), block.Hash().Hex())
//
// There is no proof of work. The creation timestamp is part of the hashed
// content, so two blocks with identical transactions mined at different instants
// get different hashes, the same way an unpredictable nonce would make them
// differ. Hash equality is therefore never used to deduplicate blocks.

package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// GenesisMiner is the miner name recorded in every genesis block.
const GenesisMiner = "Genesis"

// ZeroHash is the parent hash of a genesis block.
var ZeroHash = common.Hash{}

// Block is a single entry of a chain. All fields are set by NewBlock and are
// read-only afterwards; the hash is computed exactly once.
type Block struct {
	index    idx.Block
	prevHash common.Hash
	miner    string
	txs      []Transaction
	time     Timestamp
	hash     common.Hash
}

// NewBlock creates a block and computes its hash.
//
// The parent link is not checked here: a chain's integrity is a consensus
// property and is verified by the fork validation engine, which must be able
// to see broken chains in order to reject them.
func NewBlock(index idx.Block, prevHash common.Hash, miner string, txs []Transaction, time Timestamp) *Block {
	b := &Block{
		index:    index,
		prevHash: prevHash,
		miner:    miner,
		txs:      copyTransactions(txs),
		time:     time,
	}
	b.hash = b.computeHash()
	return b
}

// Index returns the height of the block, genesis being 0.
func (b *Block) Index() idx.Block { return b.index }

// PrevHash returns the hash of the parent block.
func (b *Block) PrevHash() common.Hash { return b.prevHash }

// Miner returns the identity name that produced the block.
func (b *Block) Miner() string { return b.miner }

// Time returns the creation timestamp.
func (b *Block) Time() Timestamp { return b.time }

// Hash returns the content hash computed at creation.
func (b *Block) Hash() common.Hash { return b.hash }

// Transactions returns a copy of the block's transactions.
func (b *Block) Transactions() []Transaction { return copyTransactions(b.txs) }

// TxCount returns the number of transactions without copying them.
func (b *Block) TxCount() int { return len(b.txs) }

// IsGenesis reports whether the block sits at height 0.
func (b *Block) IsGenesis() bool { return b.index == 0 }

// HashHex returns the block hash as 64 lowercase hex characters without a 0x prefix.
func (b *Block) HashHex() string { return common.Bytes2Hex(b.hash[:]) }

// PrevHashHex returns the parent hash as 64 lowercase hex characters. For
// genesis this is 64 zeros.
func (b *Block) PrevHashHex() string { return common.Bytes2Hex(b.prevHash[:]) }

// txPreimage is the per-transaction part of the hashed content. Only the
// economic fields take part: sender, recipient and amount.
type txPreimage struct {
	From   string
	To     string
	Amount uint64
}

// blockPreimage fixes the field order of the hashed content.
type blockPreimage struct {
	Index    uint64
	PrevHash common.Hash
	Miner    string
	Txs      []txPreimage
	Time     uint64
}

func (b *Block) computeHash() common.Hash {
	pre := blockPreimage{
		Index:    uint64(b.index),
		PrevHash: b.prevHash,
		Miner:    b.miner,
		Txs:      make([]txPreimage, 0, len(b.txs)),
		Time:     uint64(b.time),
	}
	for _, tx := range b.txs {
		pre.Txs = append(pre.Txs, txPreimage{From: tx.From, To: tx.To, Amount: tx.Amount})
	}

	// Encoding plain strings and integers cannot fail.
	enc, _ := rlp.EncodeToBytes(&pre)
	return crypto.Keccak256Hash(enc)
}

// ShortHex returns the first n hex characters of h followed by "...", or the
// full hex string when it is not longer than n.
func ShortHex(h common.Hash, n int) string {
	s := common.Bytes2Hex(h[:])
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
