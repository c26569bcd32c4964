package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// Chain is an append-only sequence of blocks starting with a genesis block.
// Its length counts the genesis block.
//
// For every i > 0 a well-formed chain satisfies
// blocks[i].PrevHash() == blocks[i-1].Hash(). Chain itself does not enforce
// this; Append always produces a well-formed link, and the consensus engine
// checks chains assembled by other means.
type Chain struct {
	blocks []*Block
}

// NewChain returns a chain holding only a fresh genesis block: index 0, an
// all-zero parent hash, miner "Genesis" and no transactions.
func NewChain() *Chain {
	genesis := NewBlock(0, ZeroHash, GenesisMiner, nil, Now())
	return &Chain{blocks: []*Block{genesis}}
}

// NewChainFromBlocks wraps existing blocks without checking their links.
// An empty argument list yields NewChain().
func NewChainFromBlocks(blocks ...*Block) *Chain {
	if len(blocks) == 0 {
		return NewChain()
	}
	cp := make([]*Block, len(blocks))
	copy(cp, blocks)
	return &Chain{blocks: cp}
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.blocks)
}

// Genesis returns block 0.
func (c *Chain) Genesis() *Block { return c.blocks[0] }

// Last returns the tip of the chain.
func (c *Chain) Last() *Block { return c.blocks[len(c.blocks)-1] }

// At returns the block at position i.
func (c *Chain) At(i int) *Block { return c.blocks[i] }

// Blocks returns a copy of the block list. Blocks are immutable, so sharing
// the pointers is safe.
func (c *Chain) Blocks() []*Block {
	cp := make([]*Block, len(c.blocks))
	copy(cp, c.blocks)
	return cp
}

// Append mines a new block on top of the tip and returns it. Its index equals
// the current length and its parent hash is the tip's hash.
func (c *Chain) Append(miner string, txs []Transaction) *Block {
	prev := c.Last()
	b := NewBlock(idx.Block(len(c.blocks)), prev.Hash(), miner, txs, Now())
	c.blocks = append(c.blocks, b)
	return b
}

// Copy returns an independent chain with the same blocks. Appending to the
// copy does not affect the original.
func (c *Chain) Copy() *Chain {
	return NewChainFromBlocks(c.blocks...)
}

// Fork starts a competing chain from this chain's genesis block.
func (c *Chain) Fork() *Chain {
	return &Chain{blocks: []*Block{c.Genesis()}}
}

// FindTransaction looks a transaction up by id in the non-genesis blocks.
func (c *Chain) FindTransaction(id string) (Transaction, bool) {
	for _, b := range c.blocks[1:] {
		for _, tx := range b.txs {
			if tx.ID == id {
				return tx, true
			}
		}
	}
	return Transaction{}, false
}

// Contains reports whether a transaction with the given id is in the chain.
func (c *Chain) Contains(id string) bool {
	_, ok := c.FindTransaction(id)
	return ok
}

// Miners returns the miner names of the non-genesis blocks in chain order.
func (c *Chain) Miners() []string {
	miners := make([]string, 0, len(c.blocks)-1)
	for _, b := range c.blocks[1:] {
		miners = append(miners, b.miner)
	}
	return miners
}

// ForEachTransaction calls fn for every transaction of every non-genesis
// block, in chain order.
func (c *Chain) ForEachTransaction(fn func(b *Block, tx Transaction)) {
	for _, b := range c.blocks[1:] {
		for _, tx := range b.txs {
			fn(b, tx)
		}
	}
}
