package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/safespacehub/plane-tracker-site/internal/config"
	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/logger"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/report"
	"github.com/safespacehub/plane-tracker-site/internal/repository"
)

type exportOptions struct {
	user   string
	device string
	status string
	all    bool
	out    string
}

func newExportCommand() *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export flight sessions as CSV",
		Long:  `Export the sessions visible to a user as CSV, with the same filters and access rules as the HTTP export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "Email of the account to export as (required)")
	cmd.Flags().StringVar(&opts.device, "device", "", "Only export sessions of this device token")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only export sessions with this status (open, closed)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Export every device in the fleet (administrators only)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file; defaults to stdout, \"-\" picks the dated file name")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runExport(ctx context.Context, opts *exportOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(exportLogConfig(cfg.Logger))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	users := repository.NewUserRepository(db)
	user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(opts.user)))
	if err != nil {
		return err
	}

	gate, err := policy.NewGate(users, log)
	if err != nil {
		return err
	}
	svc := fleet.NewSessionService(
		repository.NewDeviceRepository(db),
		repository.NewPlaneRepository(db),
		repository.NewSessionRepository(db),
		repository.NewTransactionManager(db),
		gate, log, cfg.Report.RecentLimit, cfg.Report.Location(),
	)

	w := stdout
	switch opts.out {
	case "":
	case "-":
		opts.out = svc.ExportFileName()
		fallthrough
	default:
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}

	q := fleet.SessionQuery{
		Filter: report.Filter{
			DeviceToken: opts.device,
			Status:      models.SessionStatus(opts.status),
		},
		AllDevices: opts.all,
	}

	ctx = identity.WithActor(ctx, identity.Actor{UserID: user.ID, Email: user.Email})
	n, err := svc.Export(ctx, q, w)
	if err != nil {
		return err
	}

	log.Info("sessions exported", "user", user.Email, "rows", n, "out", opts.out)
	return nil
}

// exportLogConfig moves logging off stdout, which carries the CSV. A log file
// is kept as configured.
func exportLogConfig(cfg config.LoggerConfig) config.LoggerConfig {
	if out := strings.ToLower(cfg.OutputPath); out == "" || out == "stdout" {
		cfg.OutputPath = "stderr"
	}
	return cfg
}
