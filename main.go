package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/portfolio-views/views-server/internal/config"
	"github.com/portfolio-views/views-server/internal/counter"
	"github.com/portfolio-views/views-server/internal/store"
)

const shutdownTimeout = 10 * time.Second

var (
	verbose   bool
	configDir string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "views-server",
	Short: "Serve the portfolio view counter",
	Long: `views-server counts portfolio page loads.

Each GET on the views path reads the stored count, adds one, writes it back
and returns {"views": N}. Configuration comes from config.env and environment
variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the view counter over HTTP (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored view count without incrementing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCounter(cmd.Context(), func(ctx context.Context, c *counter.Counter) error {
			n, err := c.Current(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set COUNT",
	Short: "Overwrite the stored view count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", args[0], err)
		}
		return withCounter(cmd.Context(), func(ctx context.Context, c *counter.Counter) error {
			if err := c.Set(ctx, n); err != nil {
				return err
			}
			logger.Info("View count set", zap.Int64("views", n))
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing config.env")

	rootCmd.AddCommand(serveCmd, showCmd, setCmd)
}

func openCounter(ctx context.Context, c config.Config) (*counter.Counter, store.Store, error) {
	setupCtx, cancel := context.WithTimeout(ctx, time.Second*60)
	defer cancel()

	st, err := store.Open(setupCtx, c, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Confirmed store connection", zap.String("store", c.Store))

	return counter.New(st, c.Key, c.StoreTimeout, logger), st, nil
}

func withCounter(ctx context.Context, fn func(context.Context, *counter.Counter) error) error {
	c, err := config.Get(configDir)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	vc, st, err := openCounter(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, vc)
}

func runServe(ctx context.Context) error {
	c, err := config.Get(configDir)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	logger.Info("Config loaded",
		zap.String("store", c.Store),
		zap.String("key", c.Key),
		zap.String("path", c.Path),
		zap.Duration("store_timeout", c.StoreTimeout),
	)

	vc, st, err := openCounter(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	s := server{
		counter: vc,
		path:    c.Path,
		logger:  logger,
	}
	srv := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", c.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
