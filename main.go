package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/app"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "questd",
		Short:         "Quest assignment and review service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config/config.yaml", "path to the YAML config file")

	root.AddCommand(
		serveCmd(&cfgPath),
		migrateCmd(&cfgPath),
		reconcileCmd(&cfgPath),
		tokenCmd(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		log.Fatalf("questd: %v", err)
	}
}

func setup(cfgPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	var logger *zap.Logger
	if cfg.Server.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Security.JWTSecret == "" {
				return errors.New("security.jwt_secret is required")
			}
			if cfg.Server.AdminKey == "" {
				logger.Warn("server.admin_key is not set; admin endpoints accept admin-role tokens only")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			a.Start()

			if !cfg.Server.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
				Handler: a.Router(ctx),
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("shutdown", zap.Error(err))
				}
			}
			return nil
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if _, err := app.OpenDB(cfg.Database); err != nil {
				return err
			}
			logger.Info("schema migrated", zap.String("mode", cfg.Database.Mode))
			return nil
		},
	}
}

func reconcileCmd(cfgPath *string) *cobra.Command {
	var questID int64
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark overdue assignments as missed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var n int64
			if questID > 0 {
				n, err = a.Reconciler.Reconcile(cmd.Context(), questID)
			} else {
				n, err = a.Reconciler.ReconcileAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d assignment(s) marked missed\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&questID, "quest", 0, "reconcile a single quest instead of every overdue one")
	return cmd
}

func tokenCmd(cfgPath *string) *cobra.Command {
	var (
		code string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for an employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code == "" {
				return errors.New("--employee is required")
			}
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			emp, err := a.IDs.Resolve(cmd.Context(), code)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWTTTLH
			}
			actor := identity.Actor{AccountID: emp.ID, EmployeeCode: emp.EmployeeCode, Role: emp.Role}
			token, err := mw.GenerateToken(actor, cfg.Security.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "employee", "", "employee code or account reference")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to security.jwt_ttl_h)")
	return cmd
}
