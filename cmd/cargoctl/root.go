package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/bootstrap"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type openFunc func() (*bootstrap.Deps, *config.Config, error)

// cli хранит общее состояние команд одного запуска.
type cli struct {
	open    openFunc
	deps    *bootstrap.Deps
	cfg     *config.Config
	actorID int64
}

// newRootCmd возвращает корневую команду и функцию, закрывающую зависимости.
func newRootCmd(open openFunc) (*cobra.Command, func()) {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "cargoctl",
		Short:         "CargoTrack operator tool",
		Long:          "cargoctl runs reconciliation and notification jobs directly against the CargoTrack storage.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64Var(&c.actorID, "actor", 0, "user id the command acts as")

	root.AddCommand(c.importCmd())
	root.AddCommand(c.masterCmd())
	root.AddCommand(c.syncCmd())
	root.AddCommand(c.notifyCmd())
	root.AddCommand(c.historyCmd())
	root.AddCommand(c.settingsCmd())
	root.AddCommand(c.tokenCmd())
	return root, c.close
}

func (c *cli) close() {
	if c.deps != nil {
		c.deps.Close()
		c.deps = nil
	}
}

func (c *cli) load() (*bootstrap.Deps, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	deps, cfg, err := c.open()
	if err != nil {
		return nil, err
	}
	c.deps, c.cfg = deps, cfg
	return deps, nil
}

// actor берёт роль и филиал пользователя из справочника.
func (c *cli) actor(ctx context.Context) (models.Actor, error) {
	if c.actorID <= 0 {
		return models.Actor{}, errors.New("--actor is required")
	}
	deps, err := c.load()
	if err != nil {
		return models.Actor{}, err
	}
	u, err := deps.Directory.GetUser(ctx, c.actorID)
	if err != nil {
		return models.Actor{}, errors.Wrapf(err, "actor %d", c.actorID)
	}
	return models.Actor{ID: u.ID, Role: u.Role, BranchID: u.BranchID}, nil
}

func parseStatus(raw string) (models.TrackingStatus, error) {
	s, ok := models.ParseTrackingStatus(raw)
	if !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
	failMark = color.New(color.FgRed).Sprint("✗")
)

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
	}
}
