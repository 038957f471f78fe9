package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"textbookrag/internal/tui"
)

var (
	chatClass   int
	chatSubject string
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question session",
		Long: `Start an interactive question session.

The session asks for the class and subject once, then answers questions one
at a time. Type "exit" to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newQAService(app.cfg, true)
			if err != nil {
				return err
			}
			m := tui.New(cmd.Context(), svc, chatClass, chatSubject)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().IntVar(&chatClass, "class", 0, "Class number (asked interactively when omitted)")
	cmd.Flags().StringVar(&chatSubject, "subject", "", "Subject (asked interactively when omitted)")
	return cmd
}
