package cmd

import (
	"fmt"
	"os"
	"zback/internal/config"
	"zback/internal/db"
	"zback/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "/etc/zback/zback.yaml"

var (
	cfgPath string
	cfg     *config.Config
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "zback",
	Short: "Snapshot backup orchestration daemon",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		if cfgPath == "" {
			cfgPath = os.Getenv("ZBACK_CONFIG")
		}
		if cfgPath == "" {
			cfgPath = defaultConfigPath
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		if cmd.Name() == "run" {
			if err := db.Init(cfg.DBPath); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path")
}
