// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one research question",
	Long: `Ask runs a single turn of the research agent outside a chat session. The
model decides whether to search PubMed Central; the answer is rendered as
Markdown with the cited sources listed after it. With --raw the answer is
printed as plain text while it streams.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question required")
	}
	raw, _ := cmd.Flags().GetBool("raw")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(a.withLogger(context.Background()), os.Interrupt)
	defer stop()

	ag := a.newAgent(nil)
	var answer strings.Builder
	err = ag.Stream(ctx, question, nil, func(chunk string) error {
		answer.WriteString(chunk)
		if raw {
			_, err := fmt.Fprint(os.Stdout, chunk)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if raw {
		fmt.Fprintln(os.Stdout)
	} else if err := renderMarkdown(answer.String()); err != nil {
		return err
	}

	printSources(os.Stdout, agent.Citations(answer.String(), ag.Documents()))
	return nil
}

// renderMarkdown prints md styled for the terminal.
func renderMarkdown(md string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("rendering answer: %w", err)
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}

// printSources lists the references that resolved to a found article.
func printSources(w io.Writer, sources []agent.Source) {
	var resolved []agent.Source
	for _, s := range sources {
		if s.Index >= 0 {
			resolved = append(resolved, s)
		}
	}
	if len(resolved) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for _, s := range resolved {
		fmt.Fprintf(w, "  [%s] %s\n        %s\n", s.Ref, s.Citation, s.URL)
	}
}

func init() {
	askCmd.Flags().Bool("raw", false, "print plain text as it streams instead of rendered Markdown")

	rootCmd.AddCommand(askCmd)
}
