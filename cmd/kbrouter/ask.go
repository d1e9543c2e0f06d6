package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/chatbot"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	answerStyle = lipgloss.NewStyle().PaddingLeft(2)
	metaStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	sqlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).PaddingLeft(2)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

var askShowSQL bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question, or start an interactive session without one",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger, appParts{agent: true, knowledge: true, history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if len(args) > 0 {
			res, err := a.bot.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResult(out, res)
			return nil
		}
		return repl(cmd.Context(), a.bot, cmd.InOrStdin(), out)
	},
}

func init() {
	askCmd.Flags().BoolVar(&askShowSQL, "sql", true, "show the generated SQL statement")
}

func repl(ctx context.Context, bot *chatbot.Chatbot, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, metaStyle.Render("Type a question, or 'exit' to quit."))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("? "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := bot.Ask(ctx, line)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
			continue
		}
		printResult(out, res)
	}
}

func printResult(out io.Writer, res chatbot.State) {
	if askShowSQL && res.SQLQuery != "" {
		fmt.Fprintln(out, sqlStyle.Render(res.SQLQuery))
	}
	fmt.Fprintln(out, answerStyle.Render(res.Answer))
	fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("route=%s terminal=%s attempts=%d", res.Route, res.Terminal, res.Attempts)))
	if len(res.Sources) > 0 {
		sources := make([]string, 0, len(res.Sources))
		for _, s := range res.Sources {
			sources = append(sources, fmt.Sprintf("%s (%.2f)", s.Source(), s.Score))
		}
		fmt.Fprintln(out, metaStyle.Render("sources: "+strings.Join(sources, ", ")))
	}
}

