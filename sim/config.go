package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/rules"
)

// Config tunes a simulation. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// Mode is the defense mode a reset starts in. Empty means LEGACY.
	Mode rules.DefenseMode `json:"mode,omitempty"`
	// ConfirmationDepth is the number of blocks on top of genesis the canonical
	// chain needs before the initial spend counts as confirmed.
	ConfirmationDepth int `json:"confirmationDepth"`
	// LeadTarget is how many blocks the candidate must lead by for the private
	// chain lead milestone.
	LeadTarget int `json:"leadTarget"`
	// StepLimit bounds the tracker, JournalLimit the narration journal.
	StepLimit    int `json:"stepLimit"`
	JournalLimit int `json:"journalLimit"`
	// Rules tunes every preset the simulation switches to.
	Rules rules.Overrides `json:"rules"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		ConfirmationDepth: 6,
		LeadTarget:        2,
		StepLimit:         50,
		JournalLimit:      30,
	}
}

// Option customises a Simulation at construction.
type Option func(*Simulation)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Simulation) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger. Validation steps are logged at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Simulation) {
		s.log = log
	}
}

// WithSink adds an observer of validation steps.
func WithSink(sink consensus.Sink) Option {
	return func(s *Simulation) {
		s.sink = sink
	}
}
