package sim

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/inter/walletpk"
	"github.com/rony4d/go-opera-forksim/rules"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func newTestSim(opts ...Option) *Simulation {
	s, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		panic(err)
	}
	return s
}

func balances(t *testing.T, s *Simulation) []int64 {
	out := make([]int64, 0, 3)
	for _, name := range []string{Victim, Recipient, Adversary} {
		w, ok := s.Wallet(name)
		require.True(t, ok, name)
		out = append(out, w.Balance)
	}
	return out
}

func stake(t *testing.T, s *Simulation, name string) uint64 {
	w, ok := s.Wallet(name)
	require.True(t, ok, name)
	return w.Stake
}

func TestDefaults(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	require.Equal(rules.Legacy, s.Mode())
	require.Equal(2, s.CanonicalLen())
	require.Zero(s.CandidateLen())
	require.Equal([]int64{90, 60, 10}, balances(t, s))
	require.EqualValues(5000, stake(t, s, Victim))
	require.EqualValues(200, stake(t, s, Adversary))

	st := s.Snapshot()
	require.Len(st.Wallets, 3)
	require.Len(st.Canonical, 2)
	require.Empty(st.Candidate)
	require.Equal(HashPower{Honest: 50, Adversary: 0}, st.HashPower)
	require.Equal(strings.Repeat("0", 16)+"...", st.Canonical[0].PrevHash)
	require.Equal("tx_honest_1", st.Canonical[1].Transactions[0].ID)
	require.Equal("Miner1", st.Canonical[1].Miner)
	w, ok := st.Wallet(Victim)
	require.True(ok)
	require.Equal("RSA", w.KeyType)
	require.NotEmpty(st.Journal)
}

func TestMineHonestBlock(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	out := s.MineHonestBlock("")
	require.True(out.Success)
	require.Equal("Mined honest block 2", out.Message)
	require.Equal("Miner3", out.Block.Miner)

	out = s.MineHonestBlock("")
	require.Equal("Miner1", out.Block.Miner)

	out = s.MineHonestBlock("Carol")
	require.Equal("Carol", out.Block.Miner)
	require.Equal(5, s.CanonicalLen())

	out = s.MineHonestBlocks(2)
	require.Equal("Mined honest block 6", out.Message)
	require.Equal([]int64{90, 60, 10}, balances(t, s), "honest blocks carry no transactions")
}

func TestMineAttackBlockGates(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	out := s.MineAttackBlock()
	require.False(out.Success)
	require.Equal(MsgNoHashPower, out.Message)

	require.True(s.AcquireHashPower().Success)
	out = s.MineAttackBlock()
	require.False(out.Success)
	require.Equal(MsgNotCracked, out.Message)
	require.Zero(s.CandidateLen())

	require.True(s.CrackKey().Success)
	out = s.MineAttackBlock()
	require.True(out.Success)
	require.Equal(2, s.CandidateLen())
	require.Equal("Eve", out.Block.Miner)
	require.Equal("tx_attack_alice", out.Block.Transactions[0].ID)
	require.Equal("stolen_sig_alice", out.Block.Transactions[0].Signature)

	out = s.MineAttackBlock()
	require.Empty(out.Block.Transactions)
}

func TestCrackKey(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	out := s.CrackKey()
	require.True(out.Success)
	require.Contains(out.Message, "d=2753")
	require.True(s.Snapshot().VictimCracked)

	out = s.CrackKey()
	require.False(out.Success)
	require.Equal(MsgCracked, out.Message)

	_, err := s.SetDefenseMode(rules.StakeCBL)
	require.NoError(err)
	require.False(s.Snapshot().VictimCracked)

	out = s.CrackKey()
	require.False(out.Success)
	require.Equal(MsgUncrackable, out.Message)
}

func TestBroadcastWithoutFork(t *testing.T) {
	s := newTestSim()
	out := s.Broadcast()
	require.False(t, out.Success)
	require.Equal(t, MsgNoAttackFork, out.Message)
	require.Nil(t, out.Verdict)
}

func TestLegacyDoubleSpend(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	require.True(s.CrackKey().Success)
	require.True(s.AcquireHashPower().Success)
	require.True(s.MineAttackBlocks(3).Success)
	require.Equal(4, s.CandidateLen())

	out := s.Broadcast()
	require.True(out.Success)
	require.True(out.Reorganized)
	require.Equal("Longest chain accepted", out.Message)
	require.Zero(s.CandidateLen())
	require.Equal(4, s.CanonicalLen())
	require.Equal([]int64{0, 50, 110}, balances(t, s))

	p := s.Proof()
	require.False(p.InitialSpendConfirmed)
	require.True(p.PrivateChainLead)
	require.True(p.ConflictingTxIncluded)
	require.True(p.NetworkReorg)
	require.True(p.FinalReversal)
	require.Equal(4, p.Count())
}

func TestInitialSpendConfirmed(t *testing.T) {
	s := newTestSim()

	s.MineHonestBlocks(4)
	assert.False(t, s.Proof().InitialSpendConfirmed)

	s.MineHonestBlock("")
	assert.Equal(t, 7, s.CanonicalLen())
	assert.True(t, s.Proof().InitialSpendConfirmed)
	assert.Len(t, s.Proof().Log, 1)
}

func TestCBLRejectionEnablesSybil(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	_, err := s.SetDefenseMode(rules.CBL)
	require.NoError(err)
	require.True(s.CrackKey().Success)
	require.True(s.AcquireHashPower().Success)
	s.MineAttackBlocks(3)

	out := s.Broadcast()
	require.False(out.Success)
	require.Equal("CBL violation: Eve mined 3 consecutive blocks (limit: 2)", out.Message)
	require.Equal(consensus.Policy, out.Verdict.Kind())
	require.True(s.Snapshot().Sybil)
	require.Zero(s.CandidateLen())
	require.Equal([]int64{90, 60, 10}, balances(t, s))

	// The next attack alternates sub-identities and passes the limit.
	s.MineAttackBlocks(3)
	st := s.Snapshot()
	require.Equal("Eve_A", st.Candidate[1].Miner)
	require.Equal("Eve_B", st.Candidate[2].Miner)
	require.Equal("Eve_A", st.Candidate[3].Miner)

	out = s.Broadcast()
	require.True(out.Success)
	require.Equal("Longest chain accepted (CBL passed)", out.Message)
	require.Equal([]int64{0, 50, 110}, balances(t, s))

	// Switching to CBL again clears the flag.
	_, err = s.SetDefenseMode(rules.CBL)
	require.NoError(err)
	require.False(s.Snapshot().Sybil)
}

func TestStakeRejectionSlashes(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	_, err := s.SetDefenseMode(rules.StakeCBL)
	require.NoError(err)
	w, _ := s.Wallet(Victim)
	require.Equal(walletpk.Types.Uncrackable, w.Scheme())

	require.False(s.CrackKey().Success)
	require.True(s.AcquireHashPower().Success)
	out := s.MineAttackBlocks(3)
	require.True(out.Success, out.Message)

	st := s.Snapshot()
	require.Equal("tx_attack_eve", st.Candidate[1].Transactions[0].ID)
	require.Equal([]string{"Eve_A", "Eve_B", "Eve_A"}, []string{st.Candidate[1].Miner, st.Candidate[2].Miner, st.Candidate[3].Miner})

	out = s.Broadcast()
	require.False(out.Success)
	require.Equal("insufficient stake weight: attack=300 < honest=10000 (including 10000 stakeholder backing)", out.Message)
	require.Equal([]string{"Eve_A", "Eve_B", "Eve"}, out.Slashed)
	require.Len(out.Verdict.Slashes, 3)
	require.EqualValues(75, stake(t, s, "Eve_A"))
	require.EqualValues(75, stake(t, s, "Eve_B"))
	require.EqualValues(150, stake(t, s, Adversary))
	require.EqualValues(5000, stake(t, s, Victim))
	require.Equal([]int64{90, 60, 10}, balances(t, s))
}

// TestStakeSlashesAfterSchemeSwitch mines a Sybil fork under CBL and only
// then switches to STAKE_CBL, which drops the sub-identity wallets.
func TestStakeSlashesAfterSchemeSwitch(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	_, err := s.SetDefenseMode(rules.CBL)
	require.NoError(err)
	require.True(s.EnableSybil().Success)
	require.True(s.CrackKey().Success)
	require.True(s.AcquireHashPower().Success)
	require.True(s.MineAttackBlocks(3).Success)

	_, err = s.SetDefenseMode(rules.StakeCBL)
	require.NoError(err)
	_, ok := s.Wallet("Eve_A")
	require.False(ok)

	out := s.Broadcast()
	require.False(out.Success)
	require.Equal(consensus.RuleStake, out.Verdict.Rule)
	require.Equal([]string{Adversary}, out.Slashed)
	require.EqualValues(100, stake(t, s, Adversary))
	require.EqualValues(5000, stake(t, s, Victim))
}

func TestStakeSlashesPrimaryOnce(t *testing.T) {
	require := require.New(t)
	s := newTestSim(WithConfig(Config{ConfirmationDepth: 6, LeadTarget: 2, StepLimit: 50, JournalLimit: 30}))

	_, err := s.SetDefenseMode(rules.Hybrid)
	require.NoError(err)
	s.AcquireHashPower()
	s.MineAttackBlocks(2)

	out := s.Broadcast()
	require.False(out.Success)
	require.Equal(consensus.RuleStake, out.Verdict.Rule)
	require.Equal([]string{"Eve"}, out.Slashed)
	require.EqualValues(150, stake(t, s, Adversary))
}

func TestHybridBlocksConsecutiveAttack(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	_, err := s.SetDefenseMode(rules.Hybrid)
	require.NoError(err)
	require.Equal(MsgUncrackable, s.CrackKey().Message)
	s.AcquireHashPower()
	s.MineAttackBlocks(3)

	out := s.Broadcast()
	require.False(out.Success)
	var cbl *consensus.ConsecutiveLimitError
	require.True(errors.As(out.Verdict.Err, &cbl))
	require.Empty(out.Slashed)
	require.True(s.Snapshot().Sybil)
}

func TestSetDefenseMode(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	s.EnableSybil()
	_, ok := s.Wallet("Eve_A")
	require.True(ok)

	_, err := s.SetDefenseMode("POW")
	require.ErrorIs(err, rules.ErrUnknownMode)
	require.Equal(rules.Legacy, s.Mode())

	// Same scheme: wallets are kept.
	_, err = s.SetDefenseMode(rules.CBL)
	require.NoError(err)
	_, ok = s.Wallet("Eve_A")
	require.True(ok)

	// Scheme change: principals regenerated, sub-identities dropped.
	out, err := s.SetDefenseMode(rules.StakeCBL)
	require.NoError(err)
	require.Equal("STAKE_CBL enabled", out.Message)
	_, ok = s.Wallet("Eve_A")
	require.False(ok)
	require.Equal([]int64{90, 60, 10}, balances(t, s))
	require.Equal(3, len(s.Snapshot().Wallets))
}

func TestConfigOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.ConsecutiveLimit = 3
	s := newTestSim(WithConfig(cfg))

	_, err := s.SetDefenseMode(rules.CBL)
	require.NoError(t, err)
	s.CrackKey()
	s.AcquireHashPower()
	s.MineAttackBlocks(3)

	out := s.Broadcast()
	require.True(t, out.Success, out.Message)
	require.Equal(t, 3, s.Rules().ConsecutiveLimit)
}

func TestConfiguredStartMode(t *testing.T) {
	require := require.New(t)
	cfg := DefaultConfig()
	cfg.Mode = rules.StakeCBL
	s := newTestSim(WithConfig(cfg))

	require.Equal(rules.StakeCBL, s.Mode())
	w, ok := s.Wallet(Victim)
	require.True(ok)
	require.False(w.PubKey.Factorable())

	s.Reset()
	require.Equal(rules.StakeCBL, s.Mode())

	cfg.Mode = "PARANOID"
	bad, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	require.ErrorIs(err, rules.ErrUnknownMode)
	require.Nil(bad)
}

func TestReset(t *testing.T) {
	require := require.New(t)
	s := newTestSim()

	s.CrackKey()
	s.AcquireHashPower()
	s.MineAttackBlocks(3)
	s.Broadcast()
	_, err := s.SetDefenseMode(rules.StakeCBL)
	require.NoError(err)

	require.True(s.Reset().Success)
	st := s.Snapshot()
	require.Equal(rules.Legacy, st.DefenseMode)
	require.False(st.VictimCracked)
	require.False(st.Sybil)
	require.Zero(st.ProofEvents.Count())
	require.Len(st.Canonical, 2)
	require.Equal([]int64{90, 60, 10}, balances(t, s))
	w, _ := st.Wallet(Victim)
	require.Equal("RSA", w.KeyType)
}

func TestTrackerAndJournalBounds(t *testing.T) {
	s := newTestSim(WithConfig(Config{ConfirmationDepth: 6, LeadTarget: 2, StepLimit: 5, JournalLimit: 4}))

	s.MineHonestBlocks(10)
	st := s.Snapshot()
	assert.Len(t, st.Steps, 5)
	assert.Len(t, st.Journal, 4)
	for _, step := range st.Steps {
		assert.Equal(t, "mine_honest_blocks", step.Function)
	}

	s.AcquireHashPower()
	st = s.Snapshot()
	assert.Equal(t, "acquire_hash_power", st.Steps[0].Function)
}

func TestSinkAndLogging(t *testing.T) {
	log, hook := test.NewNullLogger()
	var steps []consensus.Step
	s, err := New(WithLogger(log), WithSink(consensus.SinkFunc(func(st consensus.Step) { steps = append(steps, st) })))
	require.NoError(t, err)

	s.CrackKey()
	s.AcquireHashPower()
	s.MineAttackBlocks(3)
	s.Broadcast()

	require.NotEmpty(t, steps)
	require.Equal(t, consensus.StageDecision, steps[len(steps)-1].Stage)

	var accepted bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Fork accepted" {
			accepted = true
		}
	}
	require.True(t, accepted)
}

func TestConcurrentCommands(t *testing.T) {
	s := newTestSim()
	s.CrackKey()
	s.AcquireHashPower()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.MineHonestBlock("")
		}()
		go func() {
			defer wg.Done()
			s.MineAttackBlock()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	require.Equal(t, 10, s.CanonicalLen())
	require.Equal(t, 9, s.CandidateLen())
}
