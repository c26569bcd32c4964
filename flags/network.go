package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// HTTPFlags configures the session API server.
func HTTPFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "http.addr",
			Usage: "HTTP API listening interface",
			Value: "127.0.0.1",
		},
		cli.IntFlag{
			Name:  "http.port",
			Usage: "HTTP API listening port",
			Value: 18545,
		},
		cli.IntFlag{
			Name:  "http.maxsessions",
			Usage: "Maximum number of concurrent simulation sessions (0 = unlimited)",
			Value: 64,
		},
		cli.IntFlag{
			Name:  "http.maxblocks",
			Usage: "Maximum block count of a single mining request",
			Value: 100,
		},
		cli.DurationFlag{
			Name:  "http.shutdown",
			Usage: "Graceful shutdown timeout",
			Value: 5 * time.Second,
		},
	}
}

// MetricsFlags toggles the Prometheus endpoint.
func MetricsFlags() []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{
			Name:  "metrics",
			Usage: "Enable collection of Prometheus-compatible metrics on /metrics",
		},
	}
}
