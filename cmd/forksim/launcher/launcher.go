package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-forksim/api"
	"github.com/rony4d/go-opera-forksim/flags"
	"github.com/rony4d/go-opera-forksim/integration"
	"github.com/rony4d/go-opera-forksim/rules"
	"github.com/rony4d/go-opera-forksim/sim"
)

var app = newApp()

func newApp() *cli.App {
	app := flags.NewApp("fork-resolution attack simulator")
	app.Flags = flags.AllFlags()
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "Serve simulation sessions over HTTP",
			Flags:  append(flags.HTTPFlags(), flags.MetricsFlags()...),
			Action: serve,
		},
		{
			Name:      "scenario",
			Usage:     "Run scripted attack scenarios and print a summary",
			ArgsUsage: "[name|index|all]",
			Flags:     []cli.Flag{cli.BoolFlag{Name: "json", Usage: "Print results as JSON"}},
			Action:    scenario,
		},
		{
			Name:   "validate",
			Usage:  "Run one double-spend attack under a defense mode and print the verdict",
			Flags:  append(flags.SimulationFlags(), cli.BoolFlag{Name: "sybil", Usage: "Mine the fork with sub-identities"}),
			Action: validateFork,
		},
	}
	app.Action = serve
	return app
}

// Launch parses args and runs the selected command.
func Launch(args []string) error {
	return app.Run(args)
}

// setup builds the configuration and the logger shared by every command.
func setup(ctx *cli.Context) (Config, *logrus.Logger, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return cfg, nil, err
	}
	log, err := SetupLogging(cfg.Logging)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func serve(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Config{
		Addr:            cfg.HTTP.Endpoint(),
		MaxSessions:     cfg.HTTP.MaxSessions,
		MaxBlocks:       cfg.HTTP.MaxBlocks,
		Metrics:         cfg.Metrics.Enabled,
		Debug:           cfg.Logging.Verbosity >= 5,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, log, sim.WithConfig(cfg.Simulation.SimConfig()), sim.WithLogger(log))

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"mode":    cfg.Simulation.Mode,
		"metrics": cfg.Metrics.Enabled,
	}).Info("Starting fork simulator API")
	return srv.ListenAndServe(sigctx)
}

func scenario(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	s, err := sim.New(sim.WithConfig(cfg.Simulation.SimConfig()), sim.WithLogger(log))
	if err != nil {
		return err
	}

	var results []integration.Result
	name := ctx.Args().First()
	if name == "" || strings.EqualFold(name, "all") {
		results = integration.RunAll(s, log)
	} else {
		sc, err := integration.ByName(name)
		if err != nil {
			return err
		}
		results = []integration.Result{sc.Run(s)}
	}

	if ctx.Bool("json") {
		return printJSON(ctx.App.Writer, results)
	}
	failed := printSummary(ctx.App.Writer, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func printSummary(w io.Writer, results []integration.Result) int {
	failed := 0
	for i, res := range results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "%d. %-20s %s  %s\n", i+1, res.Scenario, status, res.Outcome.Message)
		if res.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", res.Error)
		}
	}
	return failed
}

func validateFork(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	s, err := sim.New(sim.WithConfig(cfg.Simulation.SimConfig()), sim.WithLogger(log))
	if err != nil {
		return err
	}

	attack := 3
	if cfg.Simulation.LeadTarget+1 > attack {
		attack = cfg.Simulation.LeadTarget + 1
	}
	script := integration.Script{
		Mode:         cfg.Simulation.Mode,
		Sybil:        ctx.Bool("sybil"),
		AttackBlocks: attack,
	}
	out, err := script.Run(s)
	if err != nil {
		return err
	}
	return printJSON(ctx.App.Writer, struct {
		Mode    rules.DefenseMode `json:"mode"`
		Outcome sim.Outcome       `json:"outcome"`
		State   sim.State         `json:"state"`
	}{cfg.Simulation.Mode, out, s.Snapshot()})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
