// Command visitas runs the visitation tracking API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visitas/internal/audit"
	"visitas/internal/config"
	"visitas/internal/database"
	"visitas/internal/email"
	"visitas/internal/logging"
	"visitas/internal/metrics"
	"visitas/internal/repository"
	"visitas/internal/security"
	"visitas/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "visitas",
		Short:         "Community visitation tracking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		bootstrapCmd(&configPath),
		backupCmd(&configPath),
	)
	return cmd
}

// app holds what every subcommand needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *database.DB
	metrics *metrics.Metrics
	closers []func()
}

// newApp loads configuration, opens the database and applies migrations
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}
	a.closers = append(a.closers, func() { db.Close() })

	applied, err := db.RunMigrations(context.Background(), cfg.MigrationsPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, name := range applied {
		logger.Info("Applied migration", zap.String("file", name))
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// sink builds the audit sink: the timeline table, plus NATS when configured
func (a *app) sink() audit.Sink {
	timeline := audit.NewSQLSink(repository.NewTimelineRepository(a.db))
	if a.cfg.NATSURL == "" {
		return timeline
	}

	conn, err := audit.ConnectNATS(a.cfg.NATSURL)
	if err != nil {
		a.logger.Warn("Warning: timeline events will not be published", zap.Error(err))
		return timeline
	}
	a.closers = append(a.closers, conn.Close)
	a.logger.Info("Publishing timeline events", zap.String("subject", a.cfg.NATSSubject))
	return audit.MultiSink{timeline, audit.NewNATSSink(conn, a.cfg.NATSSubject)}
}

// services wires the service layer. limiter may be nil.
func (a *app) services(ctx context.Context, limiter *security.RateLimiter) (*service.Services, error) {
	mailer, err := email.New(ctx, email.Options{
		AWSRegion:  a.cfg.AWSRegion,
		FromEmail:  a.cfg.SESFromEmail,
		FromName:   a.cfg.SESFromName,
		AppBaseURL: a.cfg.AppBaseURL,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Emitter:       audit.NewEmitter(a.sink(), a.logger, a.metrics),
		Metrics:       a.metrics,
		Logger:        a.logger,
		Tokens:        security.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL),
		LoginLimiter:  limiter,
		InvitationTTL: a.cfg.InvitationTTL,
	}
	if mailer.IsEnabled() {
		deps.Mailer = mailer
	}
	return service.New(a.db, deps), nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			a.logger.Info("Migrations completed successfully")
			return nil
		},
	}
}

func bootstrapCmd(configPath *string) *cobra.Command {
	var in service.BootstrapInput

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a community and its first superadmin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("VISITAS_BOOTSTRAP_PASSWORD")
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			svc, err := a.services(ctx, nil)
			if err != nil {
				return err
			}
			user, err := svc.Auth.Bootstrap(ctx, in)
			if err != nil {
				return err
			}
			a.logger.Info("Community created",
				zap.String("community", in.Community),
				zap.Int64("community_id", user.CommunityID),
				zap.String("superadmin", user.Email),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Community, "community", "", "Community name (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Superadmin display name (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Superadmin email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Superadmin password (default $VISITAS_BOOTSTRAP_PASSWORD)")
	_ = cmd.MarkFlagRequired("community")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
