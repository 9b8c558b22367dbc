package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"piawg/internal/pia"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func NewRegionsCommand(global *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List regions offering WireGuard servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			regions, err := a.pipeline.Regions(ctx)
			if err != nil {
				return err
			}
			return printRegions(cmd.OutOrStdout(), regions, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func printRegions(w io.Writer, regions []pia.Region, format string) error {
	switch format {
	case "", outputTable:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tREGION\tSERVERS")
		for i, r := range regions {
			fmt.Fprintf(tw, "%d\t%s (%s)\t%d\n", i, r.Name, r.ID, len(r.Servers.WG))
		}
		return tw.Flush()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(regions)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(regions); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, outputTable, outputJSON, outputYAML)
	}
}
