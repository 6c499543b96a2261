package main

import (
	"fmt"
	"os"

	"signage-manifest/internal/platform/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		port    string
		dataDir string
	)

	// loadConfig runs before every subcommand so flags override the environment.
	loadConfig := func() config.Config {
		_ = config.Load(envFile)
		cfg := config.FromEnv()
		if port != "" {
			cfg.Port = port
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		return cfg
	}

	serve := newServeCmd(loadConfig)
	root := &cobra.Command{
		Use:           "signage-server",
		Short:         "Per-player media manifests for digital signage displays",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "manifest and registry directory (overrides DATA_DIR)")

	root.AddCommand(serve, newPlayersCmd(loadConfig), newManifestCmd(loadConfig))
	return root
}
