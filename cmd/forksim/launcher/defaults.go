package launcher

import (
	"time"

	"github.com/rony4d/go-opera-forksim/rules"
	"github.com/rony4d/go-opera-forksim/sim"
)

// Defaults bundles the baseline configuration values the launcher uses
// before config files and flags override them.
type Defaults struct {
	Logging    LoggingDefaults
	HTTP       HTTPDefaults
	Metrics    MetricsDefaults
	Simulation SimulationDefaults
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs.
}

// HTTPDefaults captures the session API options.
type HTTPDefaults struct {
	Addr            string        //	Interface the API binds to; 127.0.0.1 keeps it local-only.
	Port            int           //	TCP port of the API.
	MaxSessions     int           //	Upper bound on live sessions, each holding a full simulation.
	MaxBlocks       int           //	Upper bound on the block count of one mining request.
	ShutdownTimeout time.Duration //	Grace period for in-flight requests on shutdown.
}

// MetricsDefaults toggles the Prometheus endpoint on the API server.
type MetricsDefaults struct {
	Enable bool
}

// SimulationDefaults is the tuning handed to every new simulation.
type SimulationDefaults struct {
	Mode              rules.DefenseMode
	ConsecutiveLimit  int
	PrimaryPenalty    uint64
	SybilPenalty      uint64
	ConfirmationDepth int
	LeadTarget        int
}

// DefaultConfig returns a fully populated Defaults instance.
func DefaultConfig() Defaults {
	simCfg := sim.DefaultConfig()
	return Defaults{
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
		HTTP: HTTPDefaults{
			Addr:            "127.0.0.1",
			Port:            18545,
			MaxSessions:     64,
			MaxBlocks:       100,
			ShutdownTimeout: 5 * time.Second,
		},
		Metrics: MetricsDefaults{
			Enable: false,
		},
		Simulation: SimulationDefaults{
			Mode:              rules.Legacy,
			ConsecutiveLimit:  rules.DefaultConsecutiveLimit,
			PrimaryPenalty:    rules.DefaultPrimaryPenalty,
			SybilPenalty:      rules.DefaultSybilPenalty,
			ConfirmationDepth: simCfg.ConfirmationDepth,
			LeadTarget:        simCfg.LeadTarget,
		},
	}
}
