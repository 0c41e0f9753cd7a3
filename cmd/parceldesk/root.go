package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/logger"
)

type app struct {
	cfgPath   string
	cfg       *config.Config
	factories factories
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultFactories())
}

func newRootCmdWith(f factories) *cobra.Command {
	a := &app{factories: f}

	root := &cobra.Command{
		Use:           "parceldesk",
		Short:         "Track parcels across carriers with an offline-first local cache",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return logger.Init(cfg.Log.Env, cfg.Log.Level)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("configPath"), "path to the YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newRenameCmd(a),
		newCarrierCmd(a),
		newCarriersCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// withDeps opens the store and the remote for the duration of fn.
func (a *app) withDeps(fn func(d *deps) error) error {
	d, err := bootstrap(a.cfg, a.factories)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}
