// This file maps the CLI context and an optional JSON file to the launcher's
// Config.

package launcher

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-forksim/rules"
	"github.com/rony4d/go-opera-forksim/sim"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	HTTP       HTTPConfig       `json:"http"`
	Metrics    MetricsConfig    `json:"metrics"`
	Simulation SimulationConfig `json:"simulation"`
}

type LoggingConfig struct {
	Verbosity int    `json:"verbosity"`
	Format    string `json:"format"`
	Color     bool   `json:"color"`
	SentryDSN string `json:"sentryDsn,omitempty"`
}

type HTTPConfig struct {
	Addr            string        `json:"addr"`
	Port            int           `json:"port"`
	MaxSessions     int           `json:"maxSessions"`
	MaxBlocks       int           `json:"maxBlocksPerCommand"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// Endpoint returns the host:port listen address.
func (c HTTPConfig) Endpoint() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

type SimulationConfig struct {
	Mode              rules.DefenseMode `json:"mode"`
	ConsecutiveLimit  int               `json:"consecutiveLimit"`
	PrimaryPenalty    uint64            `json:"primaryPenalty"`
	SybilPenalty      uint64            `json:"sybilPenalty"`
	ConfirmationDepth int               `json:"confirmationDepth"`
	LeadTarget        int               `json:"leadTarget"`
	BackingIdentities []string          `json:"backingIdentities,omitempty"`
}

// SimConfig converts the section into the simulation's tuning.
func (c SimulationConfig) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Mode = c.Mode
	cfg.ConfirmationDepth = c.ConfirmationDepth
	cfg.LeadTarget = c.LeadTarget
	cfg.Rules = rules.Overrides{
		ConsecutiveLimit:  c.ConsecutiveLimit,
		PrimaryPenalty:    c.PrimaryPenalty,
		SybilPenalty:      c.SybilPenalty,
		BackingIdentities: c.BackingIdentities,
	}
	return cfg
}

// defaultConfig builds the Config from the Defaults in defaults.go so both
// stay in sync.
func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Logging: LoggingConfig{
			Verbosity: d.Logging.Verbosity,
			Format:    d.Logging.Format,
			Color:     d.Logging.Color,
		},
		HTTP: HTTPConfig{
			Addr:            d.HTTP.Addr,
			Port:            d.HTTP.Port,
			MaxSessions:     d.HTTP.MaxSessions,
			MaxBlocks:       d.HTTP.MaxBlocks,
			ShutdownTimeout: d.HTTP.ShutdownTimeout,
		},
		Metrics: MetricsConfig{Enabled: d.Metrics.Enable},
		Simulation: SimulationConfig{
			Mode:              d.Simulation.Mode,
			ConsecutiveLimit:  d.Simulation.ConsecutiveLimit,
			PrimaryPenalty:    d.Simulation.PrimaryPenalty,
			SybilPenalty:      d.Simulation.SybilPenalty,
			ConfirmationDepth: d.Simulation.ConfirmationDepth,
			LeadTarget:        d.Simulation.LeadTarget,
		},
	}
}

// MakeAllConfigs merges defaults, the config file and CLI overrides into a
// single config struct, then validates it.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := stringFlag(ctx, "config"); file != "" {
		if err := loadConfigFile(resolvePath(file), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, validate(cfg)
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Flags may be given on the app or on a command; the command wins.

func isSet(ctx *cli.Context, name string) bool {
	return ctx.IsSet(name) || ctx.GlobalIsSet(name)
}

func stringFlag(ctx *cli.Context, name string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return ctx.GlobalString(name)
}

func intFlag(ctx *cli.Context, name string) int {
	if ctx.IsSet(name) {
		return ctx.Int(name)
	}
	return ctx.GlobalInt(name)
}

func uint64Flag(ctx *cli.Context, name string) uint64 {
	if ctx.IsSet(name) {
		return ctx.Uint64(name)
	}
	return ctx.GlobalUint64(name)
}

func boolFlag(ctx *cli.Context, name string) bool {
	if ctx.IsSet(name) {
		return ctx.Bool(name)
	}
	return ctx.GlobalBool(name)
}

func durationFlag(ctx *cli.Context, name string) time.Duration {
	if ctx.IsSet(name) {
		return ctx.Duration(name)
	}
	return ctx.GlobalDuration(name)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if isSet(ctx, "log.format") {
		cfg.Logging.Format = stringFlag(ctx, "log.format")
	}
	if isSet(ctx, "log.verbosity") {
		cfg.Logging.Verbosity = intFlag(ctx, "log.verbosity")
	}
	if isSet(ctx, "log.color") {
		cfg.Logging.Color = boolFlag(ctx, "log.color")
	}
	if isSet(ctx, "sentry.dsn") {
		cfg.Logging.SentryDSN = stringFlag(ctx, "sentry.dsn")
	}

	if isSet(ctx, "http.addr") {
		cfg.HTTP.Addr = stringFlag(ctx, "http.addr")
	}
	if isSet(ctx, "http.port") {
		cfg.HTTP.Port = intFlag(ctx, "http.port")
	}
	if isSet(ctx, "http.maxsessions") {
		cfg.HTTP.MaxSessions = intFlag(ctx, "http.maxsessions")
	}
	if isSet(ctx, "http.maxblocks") {
		cfg.HTTP.MaxBlocks = intFlag(ctx, "http.maxblocks")
	}
	if isSet(ctx, "http.shutdown") {
		cfg.HTTP.ShutdownTimeout = durationFlag(ctx, "http.shutdown")
	}
	if isSet(ctx, "metrics") {
		cfg.Metrics.Enabled = boolFlag(ctx, "metrics")
	}

	if isSet(ctx, "mode") {
		mode, err := rules.ParseDefenseMode(stringFlag(ctx, "mode"))
		if err != nil {
			return err
		}
		cfg.Simulation.Mode = mode
	}
	if isSet(ctx, "cbl.limit") {
		cfg.Simulation.ConsecutiveLimit = intFlag(ctx, "cbl.limit")
	}
	if isSet(ctx, "penalty.primary") {
		cfg.Simulation.PrimaryPenalty = uint64Flag(ctx, "penalty.primary")
	}
	if isSet(ctx, "penalty.sybil") {
		cfg.Simulation.SybilPenalty = uint64Flag(ctx, "penalty.sybil")
	}
	if isSet(ctx, "confirmations") {
		cfg.Simulation.ConfirmationDepth = intFlag(ctx, "confirmations")
	}
	if isSet(ctx, "lead") {
		cfg.Simulation.LeadTarget = intFlag(ctx, "lead")
	}
	return nil
}

func validate(cfg Config) error {
	if !cfg.Simulation.Mode.Valid() {
		return fmt.Errorf("%w %q", rules.ErrUnknownMode, string(cfg.Simulation.Mode))
	}
	if cfg.Simulation.ConsecutiveLimit < 1 {
		return fmt.Errorf("consecutive block limit must be positive, got %d", cfg.Simulation.ConsecutiveLimit)
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxBlocks < 1 {
		return fmt.Errorf("mining request bound must be positive, got %d", cfg.HTTP.MaxBlocks)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
