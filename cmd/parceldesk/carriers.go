package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/BearBump/ParcelDesk/internal/carriers"
	"github.com/BearBump/ParcelDesk/internal/models"
)

func newCarriersCmd(a *app) *cobra.Command {
	var popular bool
	cmd := &cobra.Command{
		Use:   "carriers [query]",
		Short: "Search the carrier directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := carriers.Load(a.cfg.Carriers.Path)
			if err != nil {
				return err
			}

			var found []models.Carrier
			switch {
			case popular:
				found = dir.Popular()
			case len(args) == 1:
				found = dir.Search(args[0])
			default:
				found = dir.All()
			}
			if len(found) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no carriers match")
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Name", "Country", "Website")
			for _, c := range found {
				if err := table.Append(strconv.Itoa(c.ID), c.Name, strings.ToUpper(c.CountryISO), c.URL); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVar(&popular, "popular", false, "only list the quick-pick carriers")
	return cmd
}
