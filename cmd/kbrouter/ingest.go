package main

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestSave bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path...>",
	Short: "Load, split, embed and store documents in the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Knowledge.Enabled {
			return errors.New("knowledge base is disabled (knowledge.enabled=false)")
		}
		a, err := newApp(cmd.Context(), cfg, logger, appParts{knowledge: true, documents: ingestSave})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		var failed int
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)

			if ingestSave {
				if _, err := a.docs.Put(cmd.Context(), name, bytes.NewReader(data), int64(len(data)), mime.TypeByExtension(filepath.Ext(name))); err != nil {
					return fmt.Errorf("save %s: %w", name, err)
				}
			}

			res, err := a.ingestor.Ingest(cmd.Context(), name, data)
			if err != nil {
				failed++
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%s: %v", name, err)))
				continue
			}
			a.metrics.ObserveIngest(res.Chunks)
			fmt.Fprintf(out, "%s: %d document(s), %d chunk(s)\n", res.Source, res.Documents, res.Chunks)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSave, "save", true, "also copy files into the document store")
}
