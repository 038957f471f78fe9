package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"textbookrag/internal/retrieval"
	"textbookrag/internal/service"
)

var (
	askClass      int
	askSubject    string
	askPromptOnly bool
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed textbook",
		Long: `Answer one question from the indexed textbook.

Questions mentioning an image, diagram, picture, figure, illustration or
"shown" are answered from page images; "chapter N" restricts the search to
that chapter.

Examples:
  textbookrag ask "What is photosynthesis?"
  textbookrag ask "What is shown in the diagram in chapter 3?"
  textbookrag ask --prompt-only "Explain figure 6.2 in chapter 6"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().IntVar(&askClass, "class", 0, "Class number (default corpus.class)")
	cmd.Flags().StringVar(&askSubject, "subject", "", "Subject (default corpus.subject)")
	cmd.Flags().BoolVar(&askPromptOnly, "prompt-only", false, "Print the grounded prompt without calling the answer service")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	req := service.Request{Question: strings.Join(args, " "), Class: cfg.Corpus.Class, Subject: cfg.Corpus.Subject}
	if askClass > 0 {
		req.Class = askClass
	}
	if askSubject != "" {
		req.Subject = askSubject
	}

	svc, err := newQAService(cfg, !askPromptOnly)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if askPromptOnly {
		p, _, err := svc.BuildPrompt(cmd.Context(), req)
		if errors.Is(err, retrieval.ErrNoGrounding) {
			fmt.Fprintln(out, "No relevant textbook content found.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, p)
		return nil
	}
	ans, err := svc.Ask(cmd.Context(), req)
	if errors.Is(err, retrieval.ErrNoGrounding) {
		fmt.Fprintln(out, "No relevant textbook content found.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ans.Text)
	return nil
}
