package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dtroode/authgate/database"
	apicontext "github.com/dtroode/authgate/internal/api/http/context"
	"github.com/dtroode/authgate/internal/api/http/handler"
	"github.com/dtroode/authgate/internal/api/http/router"
	httpserver "github.com/dtroode/authgate/internal/api/http/server"
	"github.com/dtroode/authgate/internal/config"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/password"
	"github.com/dtroode/authgate/internal/ratelimit"
	"github.com/dtroode/authgate/internal/repository/memory"
	"github.com/dtroode/authgate/internal/repository/postgres"
	"github.com/dtroode/authgate/internal/server"
	"github.com/dtroode/authgate/internal/service"
	"github.com/dtroode/authgate/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authgate",
		Short:         "Email and password authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.AddCommand(migrateCmd(), versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			printAppVersion(cmd)
		},
	}
}

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbCfg, err := config.NewDatabaseConfig()
			if err != nil {
				return err
			}

			conn, err := postgres.NewConnection(cmd.Context(), dbCfg.DSN, dbCfg.MaxConns)
			if err != nil {
				return err
			}
			defer conn.Close()

			if !status {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}

			migrations, err := database.Status(cmd.Context(), conn.DB())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tSOURCE\tAPPLIED")
			for _, m := range migrations {
				fmt.Fprintf(w, "%d\t%s\t%t\n", m.Version, m.Source, m.Applied)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "print migration status after applying")

	return cmd
}

type stores struct {
	users  model.UserStore
	audits model.AuditStore
	health map[string]handler.Pinger
	close  func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*stores, error) {
	if cfg.Storage.Backend == config.StorageBackendMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			users:  memory.NewUserRepository(),
			audits: memory.NewAuditRepository(),
			close:  func() {},
		}, nil
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &stores{
		users:  postgres.NewUserRepository(conn.DB()),
		audits: postgres.NewAuditRepository(conn.DB()),
		health: map[string]handler.Pinger{"database": conn},
		close:  func() { _ = conn.Close() },
	}, nil
}

func newRateLimiter(ctx context.Context, cfg config.RateLimit, logger *logger.Logger, wg *sync.WaitGroup) (model.RateLimiter, func(), error) {
	if cfg.Backend == config.RateLimitBackendRedis {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		return ratelimit.NewRedis(client, cfg.Attempts, cfg.Window), func() { _ = client.Close() }, nil
	}

	limiter := ratelimit.NewMemory(cfg.Attempts, cfg.Window)
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Run(ctx, cfg.SweepInterval)
	}()
	logger.Info("using in-memory rate limiter", "attempts", cfg.Attempts, "window", cfg.Window.String())

	return limiter, func() {}, nil
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	logger := logger.New(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	var wg sync.WaitGroup

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg.RateLimit, logger, &wg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	hasher := password.NewHasher(password.Params{
		Iterations:    cfg.KDF.Iterations,
		SaltBytes:     cfg.KDF.SaltBytes,
		MaxConcurrent: cfg.KDF.MaxConcurrent,
	})
	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	authService := service.NewAuth(st.users, st.audits, hasher, limiter, tokenManager, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := router.New(
		authService,
		authService.Tokens(),
		apicontext.NewManager(),
		metrics.New(reg),
		st.health,
		cfg.HTTP,
		logger,
	)
	httpServer := httpserver.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	logger.Info("starting authgate",
		"version", buildVersion,
		"commit", buildCommit,
		"kdf_iterations", hasher.Iterations(),
		"storage", cfg.Storage.Backend,
		"rate_limit", cfg.RateLimit.Backend)

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "https", cfg.HTTP.EnableHTTPS)
		serveErr <- s.Start(sl)
	}(httpServer)

	select {
	case <-ctx.Done():
		logger.Info("received interruption signal, shutting down")
	case err := <-serveErr:
		stop()
		if err != nil {
			wg.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

func printAppVersion(cmd *cobra.Command) {
	tmpl := `Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Fprintf(cmd.OutOrStdout(), tmpl, buildVersion, buildDate, buildCommit)
}
