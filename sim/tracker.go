package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/consensus"
	"github.com/rony4d/go-opera-forksim/inter"
)

// TrackedStep is a step recorded during one command.
type TrackedStep struct {
	consensus.Step
	Function string          `json:"function"`
	Time     inter.Timestamp `json:"timestamp"`
}

// Tracker keeps the most recent steps of the command being executed. It
// implements consensus.Sink so engine steps land next to command steps.
type Tracker struct {
	limit    int
	function string
	steps    []TrackedStep
}

// NewTracker returns a tracker keeping at most limit steps.
func NewTracker(limit int) *Tracker {
	return &Tracker{limit: limit}
}

// Begin clears the steps and attributes the following ones to function.
func (t *Tracker) Begin(function string) {
	t.function = function
	t.steps = t.steps[:0]
}

// Add records a step.
func (t *Tracker) Add(stage string, status consensus.Status, detail string) {
	t.Step(consensus.Step{Stage: stage, Status: status, Detail: detail})
}

// Step implements consensus.Sink.
func (t *Tracker) Step(s consensus.Step) {
	t.steps = append(t.steps, TrackedStep{Step: s, Function: t.function, Time: inter.Now()})
	if t.limit > 0 && len(t.steps) > t.limit {
		t.steps = append(t.steps[:0], t.steps[len(t.steps)-t.limit:]...)
	}
}

// Steps returns a copy of the recorded steps.
func (t *Tracker) Steps() []TrackedStep {
	return append([]TrackedStep(nil), t.steps...)
}

// Journal is the bounded narration log of a simulation.
type Journal struct {
	limit int
	lines []string
}

// NewJournal returns a journal keeping at most limit lines.
func NewJournal(limit int) *Journal {
	return &Journal{limit: limit}
}

// Addf appends a formatted line tagged with actor, e.g. "[EVE] ...".
func (j *Journal) Addf(actor, format string, args ...interface{}) {
	j.lines = append(j.lines, "["+actor+"] "+fmt.Sprintf(format, args...))
	if j.limit > 0 && len(j.lines) > j.limit {
		j.lines = append(j.lines[:0], j.lines[len(j.lines)-j.limit:]...)
	}
}

// Lines returns a copy of the journal.
func (j *Journal) Lines() []string {
	return append([]string(nil), j.lines...)
}

func (j *Journal) clear() {
	j.lines = j.lines[:0]
}

// LogSink writes validation steps to a logger. Failed steps are logged at
// info level, everything else at debug.
type LogSink struct {
	Log logrus.FieldLogger
}

// Step implements consensus.Sink.
func (l LogSink) Step(s consensus.Step) {
	entry := l.Log.WithFields(logrus.Fields{
		"stage":  s.Stage,
		"status": s.Status,
	})
	if s.Status == consensus.StatusFailed {
		entry.Info(s.Detail)
		return
	}
	entry.Debug(s.Detail)
}
