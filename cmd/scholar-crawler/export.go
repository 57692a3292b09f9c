package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamespreed/scholar-crawler/authorgraph/export"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <zip-path>",
		Short: "Export the author graph as a zip of CSV files",
		Long: `Export writes the author graph behind --graph-uri to a zip archive
containing edge_list.csv, edge_attrs.csv and node_attrs.csv.`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().String("graph-uri", "in-memory://", "URI for connecting to an author graph store."+
		" [supported URI's: in-memory://, postgresql://user@host:26257/authorgraph?sslmode=disable]")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger := newLogger(cmd)

	authorGraph, err := getAuthorGraph(viper.GetString("graph-uri"), logger)
	if err != nil {
		return err
	}

	out, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := export.Write(authorGraph, out); err != nil {
		_ = out.Close()

		return fmt.Errorf("failed to export author graph: %w", err)
	}

	if err := out.Close(); err != nil {
		return err
	}

	logger.WithField("path", args[0]).Info("author graph exported")

	return nil
}
