package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/catalog/article"
	"github.com/kailas-cloud/resdomain/internal/config"
	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	logpkg "github.com/kailas-cloud/resdomain/internal/logger"
	chiTransport "github.com/kailas-cloud/resdomain/internal/transport/chi"
	batchuc "github.com/kailas-cloud/resdomain/internal/usecase/batch"
	"github.com/kailas-cloud/resdomain/internal/version"
)

// errBatchFailed makes the process exit with 1 after the report is printed.
var errBatchFailed = errors.New("batch did not succeed")

type cli struct {
	env        string
	entityType string
	autoCommit bool
	out        io.Writer

	// open builds the app; replaced in tests.
	open func(ctx context.Context, env string) (*app, error)
	app  *app
}

func openApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return newApp(ctx, cfg, logger)
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, open: openApp}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resdomain",
		Short:         "Batch persistence of domain resources",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), c.env)
			if err != nil {
				return err
			}
			c.app = a
			cmd.SetContext(logpkg.WithFields(
				logpkg.ContextWithLogger(cmd.Context(), a.logger),
				zap.String("command", cmd.Name()),
			))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				_ = c.app.logger.Sync()
				c.app.Close()
			}
		},
	}
	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "configuration environment")
	root.PersistentFlags().StringVar(&c.entityType, "type", article.EntityType, "entity type")

	root.AddCommand(c.serveCmd(), c.importCmd(), c.deleteCmd(), c.undeleteCmd())
	return root
}

func (c *cli) addAutoCommit(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.autoCommit, "auto-commit", false,
		"flush every item on its own instead of one transaction for the batch")
}

func (c *cli) service() (*batchuc.Service, error) {
	return c.app.services.Get(c.entityType)
}

// finish prints the report and turns a failed batch into an error.
func (c *cli) finish(b *dombatch.Batch) error {
	if err := writeReport(c.out, b); err != nil {
		return err
	}
	if b.Status() != dombatch.StatusSuccessfully {
		return fmt.Errorf("%w: %s", errBatchFailed, b.Status())
	}
	return nil
}

func (c *cli) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create or update articles from a YAML list (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.entityType != article.EntityType {
				return fmt.Errorf("import supports %q only", article.EntityType)
			}
			svc, err := c.service()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			articles, err := article.Decode(r)
			if err != nil {
				return err
			}
			return c.finish(svc.UpsertResources(cmd.Context(), article.Candidates(articles), c.autoCommit))
		},
	}
	c.addAutoCommit(cmd)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var hard bool
	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete resources, softly unless --hard",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			return c.finish(svc.DeleteByIDs(cmd.Context(), args, !hard, c.autoCommit))
		},
	}
	cmd.Flags().BoolVar(&hard, "hard", false, "remove rows physically")
	c.addAutoCommit(cmd)
	return cmd
}

func (c *cli) undeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undelete ID...",
		Short: "Restore soft deleted resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ids := make([]any, len(args))
			for i, id := range args {
				ids[i] = id
			}
			return c.finish(svc.UndeleteResources(cmd.Context(), ids, c.autoCommit))
		},
	}
	c.addAutoCommit(cmd)
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops server (health and metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := c.app.cfg, c.app.logger
			logger.Info("Starting resdomain ops server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", c.env),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.String("db_driver", cfg.Database.Driver),
				zap.Strings("entity_types", c.app.services.Types()),
			)

			server := chiTransport.NewServer(c.app.health, c.app.services, logger)
			addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      server.Router(cfg.Auth.APIKeys),
				ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
				return err
			}
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
}
