package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/knowledge"
)

var (
	kbSamples int
	kbJSON    bool
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect the knowledge base",
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of stored chunks and a few samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Knowledge.Enabled {
			return errors.New("knowledge base is disabled (knowledge.enabled=false)")
		}
		a, err := newApp(cmd.Context(), cfg, logger, appParts{knowledge: true})
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := knowledge.CollectStats(cmd.Context(), a.kbStore, kbSamples)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if kbJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Fprintf(out, "Total documents in vector DB: %d\n", stats.Documents)
		for i, c := range stats.Samples {
			fmt.Fprintf(out, "\n--- Document %d (%s) ---\n%s\n", i+1, c.Source(), c.Content)
		}
		return nil
	},
}

func init() {
	kbStatsCmd.Flags().IntVarP(&kbSamples, "samples", "n", 5, "number of sample chunks to print")
	kbStatsCmd.Flags().BoolVar(&kbJSON, "json", false, "print JSON")
	kbCmd.AddCommand(kbStatsCmd)
}
