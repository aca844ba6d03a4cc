package main

import (
	"fmt"
	"time"

	"github.com/BearBump/CargoTrack/internal/api/cargoapi"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/notifier"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (c *cli) notifyCmd() *cobra.Command {
	var branchID int64
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send arrival invoices for a branch",
		Long:  "Without --branch the actor's own branch is used. --branch requires a SUPERADMIN actor.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			var res notifier.Result
			if branchID > 0 {
				if !actor.IsSuperAdmin() {
					return errors.Wrap(models.ErrForbidden, "--branch requires SUPERADMIN")
				}
				res, err = c.deps.Notifier.NotifyBranchArrivals(cmd.Context(), branchID)
			} else {
				res, err = c.deps.Notifier.NotifyActorBranch(cmd.Context(), actor)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s users notified: %d, items: %d\n", okMark, res.UsersNotified, res.ItemsNotified)
			if res.DeferredUsers > 0 {
				fmt.Fprintf(out, "%s deferred by rate limit: %d\n", warnMark, res.DeferredUsers)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&branchID, "branch", 0, "branch id")
	return cmd
}

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change tariff settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			all, err := c.deps.Settings.All(cmd.Context(), actor)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "KEY\tVALUE\tDESCRIPTION")
			for _, s := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Key, s.Value, s.Description)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			s, err := c.deps.Settings.Set(cmd.Context(), args[0], args[1], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", okMark, s.Key, s.Value)
			return nil
		},
	})
	return cmd
}

// tokenCmd выпускает JWT для пользователя из --actor; удобно для ручной проверки API.
func (c *cli) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for the --actor user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.actor(cmd.Context())
			if err != nil {
				return err
			}
			if c.cfg == nil || c.cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			tok, err := cargoapi.NewAuthenticator(c.cfg.Auth.JWTSecret).Issue(actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
