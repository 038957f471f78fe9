package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"textbookrag/internal/extract"
)

var (
	extractPDFDir string
	extractOut    string
)

func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract page text from chapter PDFs",
		Long: `Extract page text from chapter PDFs.

Each <stem>.pdf in --pdf-dir becomes <out>/<stem>/page_text/page_<N>.txt.
Name the PDFs after the chapter directories ingestion expects (chapter1.pdf,
chapter2.pdf, ...). Page images are extracted with an external tool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if extractPDFDir == "" {
				return errors.New("--pdf-dir is required")
			}
			out := extractOut
			if out == "" {
				out = app.cfg.Corpus.BaseDir
			}
			rep, err := extract.NewPDFExtractor(app.log).ExtractDir(cmd.Context(), extractPDFDir, out, app.cfg.Corpus.TextDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted %d pages from %d PDFs into %s\n", rep.Pages, rep.Documents, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&extractPDFDir, "pdf-dir", "", "Directory of chapter PDFs")
	cmd.Flags().StringVar(&extractOut, "out", "", "Output base directory (default corpus.base_dir)")
	return cmd
}
