package main

import (
	"encoding/json"
	"fmt"

	"github.com/koios/arqia/internal/config"
	"github.com/koios/arqia/pkg/models"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStylesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "styles",
		Aliases: []string{"ls"},
		Short:   "List available styles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			catalog, err := loadCatalog(cfg.Styles)
			if err != nil {
				return err
			}

			styles := catalog.List()
			if asJSON {
				summaries := make([]models.StyleSummary, 0, len(styles))
				for _, s := range styles {
					summaries = append(summaries, models.SummaryOf(s))
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(models.StylesResponse{Styles: summaries})
			}

			var data [][]string
			for _, s := range styles {
				data = append(data, []string{s.ID, s.Name, s.Icon, s.Color})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "NAME", "ICON", "COLOR"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()

			if len(data) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no styles configured")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print styles as JSON")
	return cmd
}
