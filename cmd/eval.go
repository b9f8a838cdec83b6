package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/rules"
	"github.com/am6737/zenset/transport/packet"
	"github.com/urfave/cli/v2"
)

func eval(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(c.String("packet")), "0x"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid packet: %v", err), 2)
	}
	p := &packet.Packet{}
	if err := packet.ParsePacket(data, p); err != nil {
		return cli.Exit(fmt.Sprintf("invalid packet: %v", err), 2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Out = c.App.ErrWriter

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	rs, err := rules.NewRulesFromConfig(cfg, engine, logger)
	if err != nil {
		return err
	}
	defer rs.Close()

	// Every rule is evaluated once so the listing shows all of them; the
	// first match decides like in Rules.Filter.
	w := c.App.Writer
	fmt.Fprintln(w, p.Key())
	verdict := ""
	for n, r := range rs.Rules() {
		matched := r.Match.Match(p)
		fmt.Fprintf(w, "rule %d: %s => %v (%s)\n", n, r.Match, matched, r.Action)
		if matched && verdict == "" {
			verdict = r.Action
		}
	}
	if verdict == "" {
		verdict = cfg.DefaultAction
	}
	fmt.Fprintf(w, "verdict: %s\n", verdict)
	return nil
}
