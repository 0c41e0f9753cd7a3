package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/BearBump/ParcelDesk/internal/carriers"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
)

func newListCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show tracked packages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDeps(func(d *deps) error {
				ctx := cmd.Context()
				var err error
				if refresh {
					err = d.dash.Refresh(ctx)
				} else {
					err = d.dash.Load(ctx)
				}
				if err != nil {
					return err
				}
				snap := d.dash.List.Snapshot()
				return renderPackages(cmd.OutOrStdout(), d.carriers, snap.Data)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch from the remote even if the cache is fresh")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "show <tracking-number>",
		Short: "Show a package with its tracking history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDeps(func(d *deps) error {
				snap, err := d.dash.Inspect(cmd.Context(), args[0], refresh)
				if err != nil {
					return err
				}
				return renderDetails(cmd.OutOrStdout(), d.carriers, snap)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch from the remote even if the cache is fresh")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		carrier int
		title   string
	)
	cmd := &cobra.Command{
		Use:   "add <tracking-number>",
		Short: "Register a package with the tracking service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDeps(func(d *deps) error {
				if err := d.dash.Add(cmd.Context(), args[0], carrier, title); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", args[0], d.carriers.Name(carrier))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&carrier, "carrier", 0, "carrier id, see `parceldesk carriers`")
	cmd.Flags().StringVar(&title, "title", "", "optional title")
	_ = cmd.MarkFlagRequired("carrier")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <tracking-number>",
		Aliases: []string{"delete"},
		Short:   "Stop tracking a package",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDeps(func(d *deps) error {
				if err := d.dash.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <tracking-number> <title>",
		Short: "Change a package title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDeps(func(d *deps) error {
				if err := d.dash.Rename(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newCarrierCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "carrier <tracking-number> <carrier-id>",
		Short: "Change the carrier of a package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return models.NewValidationError("carrier", "must be a number")
			}
			return a.withDeps(func(d *deps) error {
				if _, ok := d.carriers.ByID(id); !ok {
					return models.NewValidationError("carrier", "is unknown")
				}
				if err := d.dash.ChangeCarrier(cmd.Context(), args[0], id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now tracked with %s\n", args[0], d.carriers.Name(id))
				return nil
			})
		},
	}
}

func renderPackages(w io.Writer, dir *carriers.Directory, pkgs []models.Package) error {
	if len(pkgs) == 0 {
		_, err := fmt.Fprintln(w, "no packages")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("Number", "Carrier", "Status", "Title", "Last event", "Updated")
	for _, p := range pkgs {
		last := ""
		if p.LastEvent != nil {
			last = p.LastEvent.Description
		}
		if err := table.Append(p.TrackingNumber, dir.Name(p.CarrierCode), p.Status.String(), p.Title, last, ago(p.UpdatedAt)); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderDetails(w io.Writer, dir *carriers.Directory, snap syncer.Snapshot[*models.PackageDetails]) error {
	d := snap.Data
	if d == nil {
		_, err := fmt.Fprintln(w, "no details")
		return err
	}
	fmt.Fprintf(w, "%s  %s  %s\n", d.TrackingNumber, dir.Name(d.CarrierCode), d.Status)
	if d.Title != "" {
		fmt.Fprintf(w, "title:   %s\n", d.Title)
	}
	fmt.Fprintf(w, "added:   %s\n", d.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "checked: %s\n", ago(d.UpdatedAt))

	if len(d.TrackingHistory) == 0 {
		_, err := fmt.Fprintln(w, "no tracking events yet")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("Time", "Location", "Event")
	for _, e := range d.TrackingHistory {
		at := "-"
		if e.Timestamp > 0 {
			at = time.Unix(e.Timestamp, 0).Local().Format(time.DateTime)
		}
		if err := table.Append(at, e.Location, e.Description); err != nil {
			return err
		}
	}
	return table.Render()
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t).Round(time.Minute)
	if d < time.Minute {
		return "just now"
	}
	return d.String() + " ago"
}
