package main

import (
	"fmt"
	"os"

	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/configutil"
	libtelemetry "simstats-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	config Config
	tel    telemetry.API = telemetry.SlogAPI{}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "path to the json5 config, <name>.local.json5 overrides it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug reports")
}

var rootCmd = &cobra.Command{
	Use:   "simstats",
	Short: "simstats logs into mobile data SIM portals and records their usage figures.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(verbose)

		var err error
		config, err = configutil.ReadConfig[Config](configPath)
		if err != nil {
			return fmt.Errorf("read config %s: %w", configPath, err)
		}
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
