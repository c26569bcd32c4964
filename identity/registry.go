package identity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/inter/walletpk"
)

var (
	// ErrUnknownIdentity is returned for a name with no wallet.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrNestedSplit is returned when splitting an identity that is itself a split.
	ErrNestedSplit = errors.New("sub-identities cannot be split")
	// ErrAlreadyCompromised is returned by AttemptKeyRecovery for a cracked key.
	ErrAlreadyCompromised = errors.New("key already compromised")
)

// Sub-identity name suffixes.
const (
	SuffixA = "_A"
	SuffixB = "_B"
)

// SubIdentityNames returns the names a split of parent produces.
func SubIdentityNames(parent string) (string, string) {
	return parent + SuffixA, parent + SuffixB
}

// Registry is the name-keyed wallet set of one simulation. It is not safe for
// concurrent use; the owning simulation serialises access.
type Registry struct {
	wallets map[string]*Wallet
	// lineage maps a sub-identity to its parent and survives Remove and
	// wallet regeneration.
	lineage map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		wallets: make(map[string]*Wallet),
		lineage: make(map[string]string),
	}
}

// CreateWallet registers a wallet with a freshly generated key of the given
// scheme, replacing any wallet with the same name. The balance and stake
// become both current and original values.
func (r *Registry) CreateWallet(name string, balance int64, stake uint64, scheme uint8, role Role) (*Wallet, error) {
	pk, err := walletpk.Generate(scheme)
	if err != nil {
		return nil, fmt.Errorf("create wallet %s: %w", name, err)
	}
	w := &Wallet{
		Name:            name,
		Balance:         balance,
		OriginalBalance: balance,
		Stake:           stake,
		OriginalStake:   stake,
		PubKey:          pk,
		Role:            role,
		Parent:          r.lineage[name],
	}
	r.wallets[name] = w
	return w, nil
}

// Get returns the wallet registered under name.
func (r *Registry) Get(name string) (*Wallet, bool) {
	w, ok := r.wallets[name]
	return w, ok
}

// MustGet returns the wallet registered under name and panics if there is none.
func (r *Registry) MustGet(name string) *Wallet {
	w, ok := r.wallets[name]
	if !ok {
		panic(fmt.Sprintf("%v: %s", ErrUnknownIdentity, name))
	}
	return w
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.wallets))
	for name := range r.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of wallets.
func (r *Registry) Len() int {
	return len(r.wallets)
}

// Remove deletes a wallet. Its lineage entry is kept.
func (r *Registry) Remove(name string) bool {
	if _, ok := r.wallets[name]; !ok {
		return false
	}
	delete(r.wallets, name)
	return true
}

// RemoveSubIdentities deletes every wallet that was created by a split.
func (r *Registry) RemoveSubIdentities() []string {
	var removed []string
	for _, name := range r.Names() {
		if r.wallets[name].IsSubIdentity() {
			delete(r.wallets, name)
			removed = append(removed, name)
		}
	}
	return removed
}

// AttemptKeyRecovery tries to derive the private key of name from its public
// key. On success the wallet is marked compromised.
func (r *Registry) AttemptKeyRecovery(name string) (walletpk.RecoveredKey, error) {
	w, ok := r.wallets[name]
	if !ok {
		return walletpk.RecoveredKey{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, name)
	}
	if w.Compromised {
		return walletpk.RecoveredKey{}, fmt.Errorf("%w: %s", ErrAlreadyCompromised, name)
	}
	key, err := walletpk.RecoverPrivateKey(w.PubKey)
	if err != nil {
		return walletpk.RecoveredKey{}, err
	}
	w.Compromised = true
	return key, nil
}

// SplitIdentity divides the stake S of parent between two sub-identities:
// floor(S/2) and ceil(S/2). The subs inherit the parent's role, key scheme and
// compromise flag, start with a zero balance and record parent as their
// Parent. The parent keeps its stake, which equals the sum of the halves.
// When the pair already exists it is returned unchanged.
func (r *Registry) SplitIdentity(parent string) (*Wallet, *Wallet, error) {
	p, ok := r.wallets[parent]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, parent)
	}
	if p.IsSubIdentity() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNestedSplit, parent)
	}

	nameA, nameB := SubIdentityNames(parent)
	a, okA := r.wallets[nameA]
	b, okB := r.wallets[nameB]
	if okA && okB {
		return a, b, nil
	}

	half := p.Stake / 2
	a, err := r.createSub(p, nameA, half)
	if err != nil {
		return nil, nil, err
	}
	b, err = r.createSub(p, nameB, p.Stake-half)
	if err != nil {
		return nil, nil, err
	}
	p.Stake = a.Stake + b.Stake
	return a, b, nil
}

func (r *Registry) createSub(parent *Wallet, name string, stake uint64) (*Wallet, error) {
	r.lineage[name] = parent.Name
	w, err := r.CreateWallet(name, 0, stake, parent.Scheme(), parent.Role)
	if err != nil {
		return nil, err
	}
	w.Compromised = parent.Compromised
	return w, nil
}

// Parent returns the recorded parent of name.
func (r *Registry) Parent(name string) (string, bool) {
	p, ok := r.lineage[name]
	return p, ok
}

// Principal returns the root identity behind name, or name itself when it was
// never split from anything.
func (r *Registry) Principal(name string) string {
	for i := 0; i <= len(r.lineage); i++ {
		p, ok := r.lineage[name]
		if !ok {
			return name
		}
		name = p
	}
	return name
}

// StakeOf returns the stake attributed to a miner name: the wallet's own stake
// when it is registered, half of the parent's stake when only the lineage
// knows it, zero otherwise.
func (r *Registry) StakeOf(name string) uint64 {
	if w, ok := r.wallets[name]; ok {
		return w.Stake
	}
	if parent, ok := r.lineage[name]; ok {
		if p, ok := r.wallets[parent]; ok {
			return p.Stake / 2
		}
	}
	return 0
}

// Slash reduces the stake of name by penalty, flooring at zero, and returns
// the amount actually removed.
func (r *Registry) Slash(name string, penalty uint64) (uint64, error) {
	w, ok := r.wallets[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownIdentity, name)
	}
	if penalty > w.Stake {
		penalty = w.Stake
	}
	w.Stake -= penalty
	return penalty, nil
}

// ReplayBalances recomputes every balance from its original value and the
// transactions of the non-genesis blocks of chain. Transfers to or from
// unregistered names only affect the registered side. Replaying the same
// chain twice yields the same balances.
func (r *Registry) ReplayBalances(chain *inter.Chain) {
	for _, w := range r.wallets {
		w.Balance = w.OriginalBalance
	}
	chain.ForEachTransaction(func(_ *inter.Block, tx inter.Transaction) {
		if w, ok := r.wallets[tx.From]; ok {
			w.Balance -= int64(tx.Amount)
		}
		if w, ok := r.wallets[tx.To]; ok {
			w.Balance += int64(tx.Amount)
		}
	})
}

// Snapshot returns display views of all wallets ordered by name.
func (r *Registry) Snapshot() []WalletView {
	views := make([]WalletView, 0, len(r.wallets))
	for _, name := range r.Names() {
		views = append(views, r.wallets[name].View())
	}
	return views
}
