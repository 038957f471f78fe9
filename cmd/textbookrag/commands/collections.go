package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage the text and image collections",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create both collections (existing ones are left as they are)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			if err := ensureCollections(cmd.Context(), store, cfg); err != nil {
				return err
			}
			for _, spec := range collectionSpecs(cfg) {
				fmt.Fprintf(cmd.OutOrStdout(), "collection %s ready (%d-d, %s)\n", spec.Name, spec.Dimension, spec.Distance)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show point counts for both collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			store, err := newStorage(cfg)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLLECTION\tSTATUS\tPOINTS")
			for _, spec := range collectionSpecs(cfg) {
				info, err := store.CollectionInfo(cmd.Context(), spec.Name)
				if err != nil {
					return fmt.Errorf("collection %s: %w", spec.Name, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", info.Name, info.Status, info.PointsCount)
			}
			return w.Flush()
		},
	})
	return cmd
}
