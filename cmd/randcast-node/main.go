// randcast-node runs one threshold-BLS randomness network node: it dials a
// main chain plus any configured relayed chains, joins grouping rounds, and
// serves partial-signature commits and administrative RPCs, per a TOML
// config file (§6). Grounded on the teacher's cmd/drand/main.go (package-level
// *cli.Flag variables, a CLI() entry point building one *cli.App with
// subcommands).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/chain/simulated"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/node"
)

var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Usage:    "Path to the node's TOML configuration file.",
	Required: true,
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "If set, verbosity is at the debug level.",
}

var simulatedFlag = &cli.BoolFlag{
	Name:  "simulated-chain",
	Usage: "Run against an in-memory simulated chain instead of dialing real contracts. For local demos only: this repo ships no contract ABI (§1 non-goal), so this is the only runnable gateway without an operator-supplied binding.",
}

func banner() {
	fmt.Printf("randcast-node %v (date %v, commit %v)\n", version, buildDate, gitCommit)
}

func main() {
	if err := CLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func CLI() *cli.App {
	app := cli.NewApp()
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("randcast-node %v (date %v, commit %v)\n", version, buildDate, gitCommit)
	}
	app.Version = version
	app.Usage = "threshold-BLS randomness network node"
	app.Commands = []*cli.Command{
		{
			Name:  "start",
			Usage: "Start the node daemon.",
			Flags: []cli.Flag{configFlag, verboseFlag, simulatedFlag},
			Action: func(c *cli.Context) error {
				banner()
				return startCmd(c)
			},
		},
		{
			Name:  "validate-config",
			Usage: "Load and validate a config file without starting anything.",
			Flags: []cli.Flag{configFlag},
			Action: func(c *cli.Context) error {
				_, err := node.LoadConfig(c.String(configFlag.Name))
				if err != nil {
					return err
				}
				fmt.Println("config OK")
				return nil
			},
		},
	}
	return app
}

func startCmd(c *cli.Context) error {
	level := log.DefaultLevel
	if c.Bool(verboseFlag.Name) {
		level = log.DebugLevel
	}
	l := log.New(os.Stdout, level, true)

	cfg, err := node.LoadConfig(c.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	gateways, board, err := buildGateways(c, cfg, l)
	if err != nil {
		return err
	}

	ctx, err := node.NewContext(cfg, gateways, board, l)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handle, err := ctx.Deploy(runCtx)
	if err != nil {
		return fmt.Errorf("deploying node: %w", err)
	}

	l.Infow("node started", "config", c.String(configFlag.Name))
	handle.Wait()
	return nil
}

// buildGateways wires one chain.Gateway (and, for the main chain, a
// chain.Board) per configured chain. Production deployments must supply
// their own ContractBinding-backed factory (this repo ships no contract ABI,
// §1 non-goal) — --simulated-chain substitutes chain/simulated so the
// daemon is runnable for local demos without one.
func buildGateways(c *cli.Context, cfg *node.Config, l log.Logger) (node.GatewayFactory, chain.Board, error) {
	if !c.Bool(simulatedFlag.Name) {
		return nil, nil, fmt.Errorf("no production contract bindings are bundled with this repo; run with --simulated-chain for a local demo, or wire a node.GatewayFactory built from your own contract bindings")
	}

	l.Warnw("running against an in-memory simulated chain; no real chain is contacted")
	gateways := make(map[uint32]*simulated.Gateway)
	for _, chainCfg := range cfg.AllChains() {
		gateways[chainCfg.ID] = simulated.New(chainCfg.ID)
	}
	board := simulated.NewBoard()

	factory := node.GatewayFactory(func(chainCfg node.ChainConfig) (chain.Gateway, error) {
		gw, ok := gateways[chainCfg.ID]
		if !ok {
			return nil, fmt.Errorf("no simulated gateway configured for chain %d", chainCfg.ID)
		}
		return gw, nil
	})
	return factory, board, nil
}
