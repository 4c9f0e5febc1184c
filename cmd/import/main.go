// Package main переносит базу SQLite прежней версии бота в текущее хранилище.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/membership-bot/internal/app/infra"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/services/legacy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		sourcePath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "import --source users.db",
		Short: "Import members and payments from the legacy SQLite database",
		Long: `Reads the users and payments tables of the legacy bot database and
inserts members that are not yet present in the configured storage.
Rows with malformed dates are skipped and reported.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath, sourcePath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to the config file")
	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "path to the legacy SQLite database")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func run(cmd *cobra.Command, configPath, sourcePath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := sl.New(cfg.Env, cmd.ErrOrStderr())
	ctx := cmd.Context()

	src, err := legacy.OpenSource(sourcePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	res, err := infra.Open(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer res.Close()

	loc := cfg.Location()
	importer := legacy.NewImporter(res.Store, func() time.Time {
		return calendar.Today(time.Now(), loc)
	}, logger)

	report, err := importer.Import(ctx, src, dryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mode := "import"
	if report.DryRun {
		mode = "dry run"
	}
	_, _ = fmt.Fprintf(out, "%s: %d users read\n", mode, report.Users)
	_, _ = fmt.Fprintf(out, "  imported:           %d\n", report.Imported)
	_, _ = fmt.Fprintf(out, "  already present:    %d\n", report.Existing)
	_, _ = fmt.Fprintf(out, "  paid_until rebuilt: %d\n", report.Recomputed)
	_, _ = fmt.Fprintf(out, "  malformed, skipped: %d\n", report.Malformed)
	_, _ = fmt.Fprintf(out, "  failed:             %d\n", report.Failed)
	_, _ = fmt.Fprintf(out, "  payments:           %d (%d malformed)\n", report.Payments, report.BadPayment)

	if report.Failed > 0 {
		return fmt.Errorf("%d users failed to import", report.Failed)
	}
	return nil
}
