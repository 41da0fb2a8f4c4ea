package cmd

import (
	"fmt"
	"zback/internal/model"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Parsing already happened in the root command; reaching this point
		// means the file is valid.
		fmt.Printf("config %s is valid\n\n", cfgPath)

		fmt.Printf("backup interval:  %s\n", cfg.Policy.BackupInterval)
		fmt.Printf("schedule:         days=%s hours=%s\n", cfg.Policy.Days, cfg.Policy.Hours)

		fmt.Println("retention:")
		for _, tier := range model.Tiers {
			fmt.Printf("  %-9s %d\n", tier, cfg.Policy.Retention[tier])
		}

		fmt.Printf("remote sync:      enabled=%t interval=%s days=%s hours=%s\n",
			cfg.Policy.RemoteSync, cfg.Policy.RemoteSyncInterval,
			cfg.Policy.RemoteSyncDays, cfg.Policy.RemoteSyncHours)
		fmt.Printf("storage api:      %s (timeout %s)\n", cfg.API.URL, cfg.API.Timeout)

		fmt.Printf("\ndatasets (%d):\n", len(cfg.Datasets))
		for _, ds := range cfg.Datasets {
			mode := "active"
			if !ds.Active {
				mode = "passive"
			}
			fmt.Printf("  %s [%s]\n", ds.Name, mode)

			if len(ds.Destinations) == 0 {
				fmt.Println("    -> local snapshots only")
				continue
			}
			for _, dest := range ds.Destinations {
				state := "enabled"
				if !dest.Enabled {
					state = "disabled"
				}
				if dest.IsLocalOnly() {
					fmt.Printf("    -> [%s] local snapshots only\n", state)
				} else {
					fmt.Printf("    -> [%s] %s:%s\n", state, dest.RemoteHost, dest.TargetDataset(ds.Name))
				}
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
