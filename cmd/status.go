package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"zback/internal/daemon"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var status daemon.DaemonStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		uptime := time.Since(status.StartedAt).Round(time.Second)
		fmt.Printf("uptime: %s  cycles: %d  active migrations: %d\n\n",
			uptime, status.Cycles, status.ActiveMigrations)

		if len(status.Datasets) == 0 {
			fmt.Println("no datasets configured")
			return nil
		}

		for _, ds := range status.Datasets {
			mode := "active"
			if !ds.Active {
				mode = "passive"
			}

			lastSnap := "-"
			if ds.LastSnapshot != nil {
				lastSnap = ds.LastSnapshot.Format("2006-01-02 15:04")
			}

			total := 0
			for _, n := range ds.Snapshots {
				total += n
			}

			fmt.Printf("%s [%s] snapshots: %d, last: %s\n", ds.Name, mode, total, lastSnap)

			for _, dest := range ds.Destinations {
				state := "idle"
				if dest.TaskID != "" {
					state = "migrating (" + dest.TaskID + ")"
				}
				if !dest.Enabled {
					state = "disabled"
				}

				lastSync := "never"
				if dest.LastSync != nil {
					lastSync = dest.LastSync.Format("2006-01-02 15:04")
				}

				fmt.Printf("  -> %s:%s  last sync: %s  %s\n",
					dest.RemoteHost, dest.RemoteDataset, lastSync, state)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
