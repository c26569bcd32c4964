package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// SimulationFlags holds the defense rules and pacing of new simulations.
func SimulationFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "mode",
			Usage: "Defense mode (LEGACY|CBL|STAKE_CBL|HYBRID)",
			Value: "LEGACY",
		},
		cli.IntFlag{
			Name:  "cbl.limit",
			Usage: "Maximum consecutive blocks one principal may mine",
			Value: 2,
		},
		cli.Uint64Flag{
			Name:  "penalty.primary",
			Usage: "Stake slashed from a principal adversary",
			Value: 50,
		},
		cli.Uint64Flag{
			Name:  "penalty.sybil",
			Usage: "Stake slashed from each sub-identity",
			Value: 25,
		},
		cli.IntFlag{
			Name:  "confirmations",
			Usage: "Honest blocks after the victim's spend before it counts as confirmed",
			Value: 6,
		},
		cli.IntFlag{
			Name:  "lead",
			Usage: "Private fork lead that marks the attack as ahead",
			Value: 2,
		},
	}
}
