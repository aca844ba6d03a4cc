package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a warehouse file (xlsx or csv) and advance the listed codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseStatus(status)
			if err != nil {
				return err
			}
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := c.deps.Reconcile.ImportFile(cmd.Context(), filepath.Base(args[0]), f, target, actor)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Import #%d: %d codes\n", okMark, res.ImportLogID, res.TotalRows)
			fmt.Fprintf(out, "  success: %d\n", res.SuccessCount)
			fmt.Fprintf(out, "  skipped: %d\n", res.SkippedCount)
			fmt.Fprintf(out, "  errors:  %d\n", res.ErrorCount)
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "  %s %s %s\n", warnMark, s.Code, s.Reason)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %s %s %s\n", failMark, e.Code, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.StatusArrivedOriginWarehouse), "target status")
	return cmd
}

func (c *cli) masterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Inspect and update the manifest (master list)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [code] [status]",
		Short: "Stamp a milestone on the manifest and advance matching items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.deps.Reconcile.UpdateMasterStatus(cmd.Context(), args[0], target, actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s → %s, items advanced: %d\n", okMark, res.Entry.TrackingCode, target, len(res.Updated))
			for _, it := range res.Updated {
				fmt.Fprintf(out, "  #%d %s\n", it.ID, it.CurrentStatus)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [code]",
		Short: "Show the manifest entry of a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			e, err := c.deps.Reconcile.MasterEntry(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if e == nil {
				fmt.Fprintf(out, "%s (no manifest entry)\n", color.New(color.FgYellow).Sprint(args[0]))
				return nil
			}
			tw := newTable(out)
			fmt.Fprintf(tw, "code\t%s\n", e.TrackingCode)
			fmt.Fprintf(tw, "origin\t%s\n", formatTime(e.OriginArrivalAt))
			fmt.Fprintf(tw, "branch\t%s\n", formatTime(e.BranchArrivalAt))
			fmt.Fprintf(tw, "delivered\t%s\n", formatTime(e.DeliveredAt))
			fmt.Fprintf(tw, "status\t%s\n", e.MostAdvancedStatus())
			return tw.Flush()
		},
	})
	return cmd
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy manifest milestones onto items that miss them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.deps.Reconcile.SyncAllAs(cmd.Context(), actor)
			if err != nil {
				return err
			}
			mark := okMark
			if res.Failed > 0 {
				mark = warnMark
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s items updated: %d, failed: %d\n", mark, res.ItemsUpdated, res.Failed)
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [item-id]",
		Short: "Print the status history of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := c.deps.Trackings.History(cmd.Context(), id, actor)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "AT\tFROM\tTO\tSOURCE\tBY")
			for _, r := range recs {
				from := "-"
				if r.PreviousStatus != nil {
					from = string(*r.PreviousStatus)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", formatTime(&r.CreatedAt), from, r.NewStatus, r.Source, r.ChangedBy)
			}
			return tw.Flush()
		},
	}
}
