package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"uniform-shop/internal/config"
	"uniform-shop/internal/database"
	"uniform-shop/internal/logger"
	"uniform-shop/internal/repository"
	"uniform-shop/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "uniform shop maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		migrateCommand(),
		purgeTempOrdersCommand(),
		createAdminCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect loads configuration and opens the database for one command
func connect() (*config.Config, *zap.Logger, database.Service, error) {
	cfg := config.Load()
	log := logger.NewJSON(os.Stderr, zapcore.InfoLevel)

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

// newUserService builds the account service without a mailer
func newUserService(cfg *config.Config, log *zap.Logger, db database.Service) service.UserService {
	return service.NewUserService(
		repository.NewUserRepository(db.DB()),
		repository.NewRefreshTokenRepository(db.DB()),
		repository.NewPasswordResetTokenRepository(db.DB()),
		nil,
		service.UserServiceConfig{JWTSecret: cfg.JWT.Secret, ShopName: cfg.Shop.Name, PublicURL: cfg.Shop.PublicURL},
		log,
	)
}

// migrateCommand groups the goose schema commands
func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, log, db, err := connect()
				if err != nil {
					return err
				}
				defer db.Close()

				return database.RunMigrations(db.DB(), log)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _, db, err := connect()
				if err != nil {
					return err
				}
				defer db.Close()

				return database.MigrationStatus(db.DB())
			},
		},
	)

	return cmd
}

func purgeTempOrdersCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge-temp-orders",
		Short: "delete abandoned checkouts and expired session and reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			// Default to the checkout retention period
			if olderThan <= 0 {
				olderThan = cfg.Shop.TempOrderTTL
			}

			ctx := cmd.Context()
			now := time.Now()

			// Purge abandoned checkouts, then expired tokens
			temps, err := repository.NewTempOrderRepository(db.DB()).DeleteOlderThan(ctx, now.Add(-olderThan))
			if err != nil {
				return err
			}
			tokens, err := newUserService(cfg, log, db).PurgeExpiredTokens(ctx)
			if err != nil {
				return err
			}

			log.Info("Purge complete",
				zap.Int64("temp_orders", temps),
				zap.Int64("expired_tokens", tokens),
				zap.Duration("older_than", olderThan),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d temp orders, %d expired tokens\n", temps, tokens)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention period (defaults to TEMP_ORDER_TTL)")
	return cmd
}

func createAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "create an admin account or promote an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			// Bound bcrypt and the database round trips
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			admin, err := newUserService(cfg, log, db).CreateAdmin(ctx, email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}
