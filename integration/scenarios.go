// Package integration bundles scripted attacks into named scenarios that run
// against a sim.Simulation. Each scenario resets the simulation first, so the
// scenarios are independent of each other and of their order.
//
// Usage:
//
//	s, err := sim.New()
//	if err != nil {
//		return err
//	}
//	for _, res := range integration.RunAll(s, log) {
//		fmt.Println(res.Scenario, res.Passed)
//	}
package integration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/rules"
	"github.com/rony4d/go-opera-forksim/sim"
)

var (
	// ErrStepFailed is returned when a command of a script fails.
	ErrStepFailed = errors.New("scenario step failed")
	// ErrUnexpectedOutcome is returned when the final outcome is not the expected one.
	ErrUnexpectedOutcome = errors.New("unexpected outcome")
	// ErrUnknownScenario is returned by ByName.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Script is a parameterised double-spend attack.
type Script struct {
	// Mode is switched to after the reset.
	Mode rules.DefenseMode
	// Sybil enables sub-identity mining before the attack.
	Sybil bool
	// HonestBlocks are mined on the canonical chain before the attack.
	HonestBlocks int
	// AttackBlocks are mined on the private fork before broadcasting.
	AttackBlocks int
}

// Run resets s, plays the script and returns the outcome of the broadcast.
// Key recovery is attempted in every mode; its failure only aborts the
// script when the keys are factorable.
func (sc Script) Run(s *sim.Simulation) (sim.Outcome, error) {
	s.Reset()
	if sc.Mode != "" && sc.Mode != s.Mode() {
		if _, err := s.SetDefenseMode(sc.Mode); err != nil {
			return sim.Outcome{}, err
		}
	}
	if sc.Sybil {
		if err := mustSucceed("enable sybil", s.EnableSybil()); err != nil {
			return sim.Outcome{}, err
		}
	}
	if sc.HonestBlocks > 0 {
		s.MineHonestBlocks(sc.HonestBlocks)
	}
	if out := s.CrackKey(); !out.Success && !s.Rules().UsesUncrackableKeys() {
		return out, fmt.Errorf("%w: crack key: %s", ErrStepFailed, out.Message)
	}
	if err := mustSucceed("acquire hash power", s.AcquireHashPower()); err != nil {
		return sim.Outcome{}, err
	}
	if err := mustSucceed("mine attack blocks", s.MineAttackBlocks(sc.AttackBlocks)); err != nil {
		return sim.Outcome{}, err
	}
	return s.Broadcast(), nil
}

func mustSucceed(step string, out sim.Outcome) error {
	if !out.Success {
		return fmt.Errorf("%w: %s: %s", ErrStepFailed, step, out.Message)
	}
	return nil
}

// Scenario is a named script with its expected result.
type Scenario struct {
	Name        string
	Description string
	Script      Script
	Expect      func(sim.Outcome) error
}

// Result is the report of one scenario run.
type Result struct {
	Scenario string        `json:"scenario"`
	Passed   bool          `json:"passed"`
	Outcome  sim.Outcome   `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run plays the scenario and checks its expectation.
func (sc Scenario) Run(s *sim.Simulation) Result {
	start := time.Now()
	out, err := sc.Script.Run(s)
	if err == nil && sc.Expect != nil {
		err = sc.Expect(out)
	}
	res := Result{Scenario: sc.Name, Passed: err == nil, Outcome: out, Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// All returns the five demonstration scenarios in escalation order.
func All() []Scenario {
	return []Scenario{
		{
			Name:        "legacy-double-spend",
			Description: "Longest chain only: a 51% adversary with a cracked key rewrites history",
			Script:      Script{Mode: rules.Legacy, AttackBlocks: 3},
			Expect:      expectAccepted,
		},
		{
			Name:        "cbl-rejection",
			Description: "Consecutive-block limit rejects three blocks in a row by one miner",
			Script:      Script{Mode: rules.CBL, HonestBlocks: 2, AttackBlocks: 3},
			Expect:      expectRejected(consensus.RuleConsecutive),
		},
		{
			Name:        "sybil-bypass",
			Description: "Alternating sub-identities evade the consecutive-block limit",
			Script:      Script{Mode: rules.CBL, Sybil: true, AttackBlocks: 3},
			Expect:      expectAccepted,
		},
		{
			Name:        "stake-slashing",
			Description: "Stake weighting with uncrackable keys rejects the fork and slashes the adversary",
			Script:      Script{Mode: rules.StakeCBL, HonestBlocks: 2, AttackBlocks: 3},
			Expect:      expectSlashed,
		},
		{
			Name:        "hybrid-defense",
			Description: "Consecutive scan plus stake weighting rejects a single-identity attack",
			Script:      Script{Mode: rules.Hybrid, HonestBlocks: 2, AttackBlocks: 3},
			Expect:      expectRejected(consensus.RuleConsecutive),
		},
	}
}

// ByName finds a scenario by name or by its 1-based position.
func ByName(name string) (Scenario, error) {
	all := All()
	if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= len(all) {
		return all[n-1], nil
	}
	for _, sc := range all {
		if strings.EqualFold(sc.Name, name) {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w %q", ErrUnknownScenario, name)
}

// RunAll plays every scenario on s and logs a line per result.
func RunAll(s *sim.Simulation, log logrus.FieldLogger) []Result {
	all := All()
	results := make([]Result, 0, len(all))
	for _, sc := range all {
		res := sc.Run(s)
		entry := log.WithFields(logrus.Fields{
			"scenario": sc.Name,
			"passed":   res.Passed,
			"elapsed":  res.Duration,
		})
		if res.Passed {
			entry.Info(res.Outcome.Message)
		} else {
			entry.Warn(res.Error)
		}
		results = append(results, res)
	}
	return results
}

func expectAccepted(out sim.Outcome) error {
	if !out.Success || !out.Reorganized {
		return fmt.Errorf("%w: want acceptance, got %q", ErrUnexpectedOutcome, out.Message)
	}
	return nil
}

func expectRejected(rule consensus.Rule) func(sim.Outcome) error {
	return func(out sim.Outcome) error {
		if out.Success || out.Verdict == nil {
			return fmt.Errorf("%w: want rejection by %s, got %q", ErrUnexpectedOutcome, rule, out.Message)
		}
		if out.Verdict.Rule != rule {
			return fmt.Errorf("%w: want rejection by %s, got %s: %q", ErrUnexpectedOutcome, rule, out.Verdict.Rule, out.Message)
		}
		return nil
	}
}

func expectSlashed(out sim.Outcome) error {
	if err := expectRejected(consensus.RuleStake)(out); err != nil {
		return err
	}
	if len(out.Slashed) == 0 {
		return fmt.Errorf("%w: stake rejection without slashing", ErrUnexpectedOutcome)
	}
	return nil
}
