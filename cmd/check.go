package cmd

import (
	"fmt"

	"github.com/am6737/zenset/rules"
	"github.com/urfave/cli/v2"
)

func check(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	def, err := rules.Parse(args)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	for _, w := range def.Warnings {
		fmt.Fprintln(c.App.ErrWriter, "Warning:", w)
	}
	info, err := def.Info()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	fmt.Fprintln(c.App.Writer, info.Save())
	return nil
}
