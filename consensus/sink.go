package consensus

// Status is the state of one validation stage.
type Status string

const (
	StatusChecking Status = "checking"
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
)

// Stage names reported to a Sink.
const (
	StageIntegrity    = "Hash-chain integrity"
	StageAuthenticity = "Transaction authenticity"
	StageConsecutive  = "Consecutive-block limit"
	StageStake        = "Stake weight"
	StageLongest      = "Longest chain"
	StageMode         = "Defense mode"
	StageDecision     = "Decision"
)

// Step is one narration event of a validation.
type Step struct {
	Stage  string `json:"stage"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// Sink receives validation steps as they happen. The engine never depends on
// what a sink does with them.
type Sink interface {
	Step(Step)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Step)

// Step implements Sink.
func (f SinkFunc) Step(s Step) { f(s) }

// MultiSink forwards every step to each non-nil sink in order.
type MultiSink []Sink

// Step implements Sink.
func (m MultiSink) Step(s Step) {
	for _, sink := range m {
		if sink != nil {
			sink.Step(s)
		}
	}
}
