// Command expensectl lists, adds and deletes expenses in the configured
// store without going through the web server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentCLI, os.Stderr)
	cli.MustValidate(logger, cfg.Validate)

	open := func(ctx context.Context) (ledger, func(), error) {
		backendCfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		result, err := cli.OpenStore(ctx, logger, backendCfg)
		if err != nil {
			return nil, nil, err
		}
		svc := services.NewExpenseService(result.Store, services.WithLogger(logger))
		return svc, func() { _ = svc.Close() }, nil
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(open, os.Stdout, os.Stderr) {
		commander.Register(c, "expenses")
	}

	flag.Parse()

	ctx, stop := cli.SignalContext(context.Background())
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
