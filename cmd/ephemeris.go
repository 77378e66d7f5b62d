package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/ephemeris"
	"github.com/sells-group/natal-cli/internal/fetcher"
)

var ephemerisCmd = &cobra.Command{
	Use:   "ephemeris",
	Short: "Manage ephemeris data files",
}

var ephemerisFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the VSOP87 series into the configured data directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		source, _ := cmd.Flags().GetString("source")
		force, _ := cmd.Flags().GetBool("force")
		if source != "" {
			cfg.Ephemeris.SourceURL = source
		}
		if err := cfg.Validate("ephemeris"); err != nil {
			return err
		}

		f, err := fetcher.New(cfg.Ephemeris.SourceURL, fetcher.Options{
			HTTP: fetcher.HTTPOptions{UserAgent: "natal-cli"},
		})
		if err != nil {
			return eris.Wrap(err, "ephemeris fetch")
		}
		defer f.Close() //nolint:errcheck

		rep, err := ephemeris.Install(cmd.Context(), f, cfg.Ephemeris.SourceURL, cfg.Ephemeris.DataDir, force)
		if err != nil {
			return eris.Wrap(err, "ephemeris fetch")
		}

		zap.L().Info("ephemeris installed",
			zap.String("dir", cfg.Ephemeris.DataDir),
			zap.Int("downloaded", len(rep.Downloaded)),
			zap.Int("skipped", len(rep.Skipped)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d files (%d bytes), skipped %d\n",
			len(rep.Downloaded), rep.Bytes, len(rep.Skipped))
		return nil
	},
}

var ephemerisStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured position layers and whether they can load",
	RunE: func(cmd *cobra.Command, _ []string) error {
		layers, err := ephemeris.BuildLayers(cfg.Ephemeris.Layers, cfg.Ephemeris.DataDir)
		if err != nil {
			return err
		}
		writeLayerStatus(cmd.OutOrStdout(), ephemeris.NewChain(layers))
		return nil
	},
}

type readiness interface {
	Ready() error
}

// layerStatus reports each layer in order. Layers backed by data files
// show their load error instead of "ready".
func layerStatus(layers []ephemeris.Layer) [][]string {
	rows := make([][]string, 0, len(layers))
	for i, l := range layers {
		state := "ready"
		if r, ok := l.(readiness); ok {
			if err := r.Ready(); err != nil {
				state = err.Error()
			}
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), l.Name(), state})
	}
	return rows
}

func writeLayerStatus(w io.Writer, c *ephemeris.Chain) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Order", "Layer", "Status"})
	for _, row := range layerStatus(c.Members()) {
		table.Append(row)
	}
	table.Render()
}

func init() {
	ephemerisFetchCmd.Flags().String("source", "", "override ephemeris.source_url")
	ephemerisFetchCmd.Flags().Bool("force", false, "download files that already exist")

	ephemerisCmd.AddCommand(ephemerisFetchCmd, ephemerisStatusCmd)
	rootCmd.AddCommand(ephemerisCmd)
}
