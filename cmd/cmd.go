package cmd

import (
	"github.com/urfave/cli/v2"
)

const VERSION = "v1.0.0"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "config file path",
		Value:   "/etc/zenset/config.yaml",
	}
}

var App = NewApp()

// NewApp builds the command line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "zenset",
		Usage:   "match queued packets against named address sets",
		Version: VERSION,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "filter packets from the configured nfqueue",
				Flags:  []cli.Flag{configFlag()},
				Action: run,
			},
			{
				Name:            "check",
				Usage:           "parse set match options and print their saved form",
				ArgsUsage:       "[!] --match-set NAME src,dst [options]",
				SkipFlagParsing: true,
				Action:          check,
			},
			{
				Name:  "eval",
				Usage: "evaluate the configured rules against one packet",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "packet",
						Usage:    "hex encoded IPv4 packet",
						Required: true,
					},
				},
				Action: eval,
			},
		},
	}
}
