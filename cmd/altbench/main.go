// Command altbench pushes values from several producers through channels
// into one consumer that multiplexes them with alt, and reports how the
// wins were spread.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cspx/log"
	"cspx/pprof"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "altbench",
		Short:        "Exercise channels and alt under load",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Default().SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error")
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := defaultOptions()
	var pprofAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run producers and one alt consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Default()
			if pprofAddr != "" {
				srv := pprof.Start(pprofAddr, logger)
				defer srv.Close()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			rep, err := run(ctx, opts, logger)
			if err != nil {
				return err
			}
			rep.log(logger)
			return nil
		},
	}
	bindFlags(cmd.Flags(), &opts)
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "serve /debug/pprof and /metrics on this address")
	return cmd
}

func bindFlags(flags *pflag.FlagSet, o *options) {
	flags.IntVar(&o.Producers, "producers", o.Producers, "number of producers, one channel each")
	flags.IntVar(&o.Capacity, "capacity", o.Capacity, "channel capacity, 0 for rendezvous")
	flags.IntVar(&o.Items, "items", o.Items, "values sent by each producer")
	flags.BoolVar(&o.Priority, "priority", o.Priority, "lowest-index ready channel always wins")
	flags.Int64Var(&o.Seed, "seed", o.Seed, "seed for fair selection, 0 for the shared source")
}
