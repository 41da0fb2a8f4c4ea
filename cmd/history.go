package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"zback/internal/model"

	"github.com/spf13/cobra"
)

var (
	historyN       int
	historyDataset string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View orchestration event history",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		query.Set("n", fmt.Sprint(historyN))
		if historyDataset != "" {
			query.Set("dataset", historyDataset)
		}

		resp, err := http.Get(daemonURL("/history") + "?" + query.Encode())
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var events []model.Event
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, e := range events {
			status := "✓"
			if e.Failed() {
				status = "✗"
			}

			line := fmt.Sprintf("%s [%s] %-20s %s",
				status,
				e.OccurredAt.Format("2006-01-02 15:04:05"),
				e.Kind,
				e.Dataset)
			if e.Target != "" {
				line += " " + e.Target
			}
			if e.Detail != "" {
				line += " (" + e.Detail + ")"
			}

			fmt.Println(line)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().StringVar(&historyDataset, "dataset", "", "filter by dataset")
	rootCmd.AddCommand(historyCmd)
}
