package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/history"
	"github.com/kbrouter/kbrouter/sqlagent"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failedStyle = cellStyle.Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().Faint(true)
)

// errMemoryHistory is returned by the history command for the memory
// backend, whose records live only inside the process that answered.
var errMemoryHistory = errors.New("history.backend=memory keeps runs only inside the serving process; configure sqlite, postgres or redis to list them")

var (
	historyLimit    int
	historyTerminal string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.History.Backend == "memory" {
			return errMemoryHistory
		}
		if err := validTerminal(historyTerminal); err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, logger, appParts{history: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.history == nil {
			return errors.New("history is disabled (history.backend=none)")
		}

		records, err := a.history.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), historyTable(withTerminal(records, historyTerminal)))
		return nil
	},
}

// validTerminal accepts "", "error" or the name of a terminal workflow step.
func validTerminal(name string) error {
	if name == "" || name == "error" {
		return nil
	}
	if step, ok := sqlagent.ParseStep(name); ok && step.Terminal() {
		return nil
	}
	return fmt.Errorf("unknown terminal %q: want error, format_answer, fallback_response or max_iterations_reached", name)
}

func withTerminal(records []*history.Record, terminal string) []*history.Record {
	if terminal == "" {
		return records
	}
	out := make([]*history.Record, 0, len(records))
	for _, r := range records {
		if r.Terminal == terminal {
			out = append(out, r)
		}
	}
	return out
}

// historyTable renders records newest first. Failed runs are highlighted.
func historyTable(records []*history.Record) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("TIME", "ROUTE", "TERMINAL", "ATTEMPTS", "DURATION", "QUESTION")
	for _, r := range records {
		t.Row(
			r.CreatedAt.Local().Format(time.DateTime),
			r.Route,
			r.Terminal,
			strconv.Itoa(r.Attempts),
			r.Duration.Round(time.Millisecond).String(),
			r.Question,
		)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row >= 0 && row < len(records) && records[row].Error != "":
			return failedStyle
		}
		return cellStyle
	})
	return t.Render()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultListLimit, "number of runs to show")
	historyCmd.Flags().StringVar(&historyTerminal, "terminal", "", "only show runs that ended in this terminal step, or error")
}
