package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"

	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/plugin/ai/funnel"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
	"github.com/hrygo/servicefunnel/server"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the funnel from the terminal",
	Long: `Reads complaints from stdin, one per line, and prints the funnel's answer.
An empty line or "/reset" starts a new dialog, "/quit" exits.`,
}

func init() {
	// Assigned here rather than in the literal: runChat reads chatCmd's flags.
	chatCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	}
	chatCmd.Flags().Bool("verbose", false, "print candidates and filters of every turn")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	prof, err := loadProfile()
	if err != nil {
		return err
	}
	verbose, _ := chatCmd.Flags().GetBool("verbose")

	st, err := openStore(ctx, prof)
	if err != nil {
		return err
	}
	defer st.Close()

	// Terminal dialogs are not worth persisting.
	components, err := server.NewComponents(prof, st, observability.NewMetrics(0), session.NewMemoryStore())
	if err != nil {
		return err
	}
	defer components.Close()
	if err := components.Warmup(ctx); err != nil {
		return err
	}

	dialogID := shortuuid.New()
	fmt.Fprintf(out, "dialog %s, describe the problem\n", dialogID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit":
			return nil
		case "", "/reset":
			if err := components.Funnel.Reset(ctx, dialogID); err != nil {
				return err
			}
			dialogID = shortuuid.New()
			fmt.Fprintf(out, "new dialog %s\n", dialogID)
			continue
		}

		res := components.Funnel.DetectService(ctx, line, funnel.DetectContext{DialogID: dialogID})
		printResult(out, res, verbose)
	}
}

func printResult(out io.Writer, res *funnel.DetectResult, verbose bool) {
	fmt.Fprintln(out, res.Message)
	if res.Status == funnel.StatusSuccess {
		fmt.Fprintf(out, "  → %d %s (%.2f)\n", res.ServiceID, res.ServiceName, res.Confidence)
	}
	if !verbose {
		return
	}
	fmt.Fprintf(out, "  state=%s escalated=%t\n", res.State, res.Escalated)
	for _, c := range res.Candidates {
		fmt.Fprintf(out, "  %6.3f  %d %s %v\n", c.Priority, c.ServiceID, c.ServiceName, c.Sources)
	}
	if res.Problem != "" {
		fmt.Fprintf(out, "  problem: %s\n", res.Problem)
	}
}
