package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"textbookrag/internal/config"
	"textbookrag/internal/embedding"
	"textbookrag/internal/ingest"
	"textbookrag/internal/vectorstore"
	"textbookrag/internal/vectorstore/memory"
)

var (
	ingestDryRun     bool
	ingestBaseDir    string
	ingestNoProgress bool
)

func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed extracted pages into the vector store",
		Long: `Embed extracted pages into the vector store.

The content source is laid out as
  <base>/<chapter-prefix><N>/page_text/page_<N>.txt
  <base>/<chapter-prefix><N>/images/page_<N>_img_<M>.png

Examples:
  textbookrag ingest text
  textbookrag ingest images --base-dir extracted/class10_science
  textbookrag ingest text --dry-run`,
	}
	cmd.PersistentFlags().BoolVar(&ingestDryRun, "dry-run", false, "Embed into an in-memory store instead of the configured one")
	cmd.PersistentFlags().StringVar(&ingestBaseDir, "base-dir", "", "Override corpus.base_dir")
	cmd.PersistentFlags().BoolVar(&ingestNoProgress, "no-progress", false, "Disable progress bars")

	cmd.AddCommand(&cobra.Command{
		Use:   "text",
		Short: "Ingest page text into the text collection",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runIngest(cmd, "text") },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "images",
		Short: "Ingest page images into the image collection",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runIngest(cmd, "images") },
	})
	return cmd
}

func runIngest(cmd *cobra.Command, kind string) error {
	cfg := app.cfg
	if ingestBaseDir != "" {
		cfg.Corpus.BaseDir = ingestBaseDir
	}
	ctx := cmd.Context()

	var store vectorstore.Storage
	if ingestDryRun {
		store = memory.NewStorage()
	} else {
		s, err := newStorage(cfg)
		if err != nil {
			return err
		}
		store = s
	}
	if err := ensureCollections(ctx, store, cfg); err != nil {
		return err
	}
	models, err := embedding.New(cfg)
	if err != nil {
		return err
	}

	layout := layoutFromConfig(cfg)
	var rep *ingest.Report
	switch kind {
	case "text":
		opts := ingestOptions(cfg, cfg.Collections.Text, cfg.Ingest.TextBatchSize)
		rep, err = ingest.NewTextPipeline(layout, store, models.Text, cfg.Ingest.MinTextChars, opts).Run(ctx)
	case "images":
		opts := ingestOptions(cfg, cfg.Collections.Image, cfg.Ingest.ImageBatchSize)
		rep, err = ingest.NewImagePipeline(layout, store, models.Image, cfg.Ingest.MinImageWidth, cfg.Ingest.MinImageHeight, opts).Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", kind, err)
	}
	suffix := ""
	if ingestDryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chapters, %d admitted, %d skipped, %d batches%s\n",
		kind, rep.Chapters, rep.Admitted, rep.Skipped, rep.Flushes, suffix)
	return nil
}

func ingestOptions(cfg *config.AppConfig, col config.CollectionConfig, batch int) ingest.Options {
	return ingest.Options{
		Collection: col.Name,
		Dimension:  col.Dimension,
		Class:      cfg.Corpus.Class,
		Subject:    cfg.Corpus.Subject,
		BatchSize:  batch,
		IDStrategy: cfg.Ingest.IDStrategy,
		LockDir:    cfg.Ingest.LockDir,
		Progress:   !ingestNoProgress && cfg.Ingest.ProgressEnabled(ingest.DefaultProgressEnabled()),
		Log:        app.log,
	}
}
