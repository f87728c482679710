// coldkeep is the tiered object storage lifecycle tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coldkeep/coldkeep/internal/admin"
	"github.com/coldkeep/coldkeep/internal/config"
	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/metrics"
	"github.com/coldkeep/coldkeep/internal/notify"
	"github.com/coldkeep/coldkeep/internal/objstore"
	"github.com/coldkeep/coldkeep/internal/record"
	"github.com/coldkeep/coldkeep/internal/svc"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile  string
	logLevel string

	// Admin token flags
	tokenSubject string
	tokenTTL     time.Duration

	// Service mode flag (hidden, used when running as a service)
	serviceRun bool
)

func main() {
	// Check if running as a service (invoked by service manager)
	if svc.IsServiceMode(os.Args) {
		runAsService()
		return
	}

	rootCmd := &cobra.Command{
		Use:   "coldkeep",
		Short: "ColdKeep - tiered object storage with lifecycle management",
		Long: `ColdKeep stores files across a hot and a cold S3 bucket, tracks them in a
metadata backend, and reconciles the two sides.

QUICK START:

  # Upload a file to the hot tier, keep it hot for a week:
  coldkeep upload report.pdf --hot-for 168h

  # Get a download URL:
  coldkeep url <file-id>

  # Run the daemon (archival sweeps + admin API):
  coldkeep serve

RECONCILIATION:

  coldkeep orphans list
  coldkeep orphans adopt --prefix private/
  coldkeep orphans delete --dry-run

For more help on any command, use: coldkeep <command> --help`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")

	// Hidden service mode flag (used when running as a service)
	rootCmd.PersistentFlags().BoolVar(&serviceRun, "service-run", false, "Run as a service (internal use)")
	_ = rootCmd.PersistentFlags().MarkHidden("service-run")

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coldkeep daemon",
		Long: `Run the coldkeep daemon: the background sweeper that archives expired hot
files (and optionally scans for orphans), plus the admin HTTP API when
admin.listen is configured.`,
		RunE: runServe,
	}
	rootCmd.AddCommand(serveCmd)

	// Admin token command
	adminTokenCmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a bearer token for the admin API",
		RunE:  runAdminToken,
	}
	adminTokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(adminTokenCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("coldkeep %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Build Time: %s\n", BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// File commands
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newURLCmd())
	rootCmd.AddCommand(newStatCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRemoveCmd())

	// Lifecycle transition commands
	rootCmd.AddCommand(newSetTierCmd())
	rootCmd.AddCommand(newSetVisibilityCmd())
	rootCmd.AddCommand(newSetHotCmd())
	rootCmd.AddCommand(newArchiveCmd())

	// Bucket-side commands
	rootCmd.AddCommand(newObjectsCmd())
	rootCmd.AddCommand(newOrphansCmd())

	// Service command - manage system service
	rootCmd.AddCommand(newServiceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// setupServiceLogging configures logging for service mode.
// This writes directly to a file because launchd/kardianos-service
// may not properly redirect stderr.
func setupServiceLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logPath := "/var/log/coldkeep-service.log"
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}

	multi := io.MultiWriter(logFile, os.Stderr)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: multi, TimeFormat: time.RFC3339})
}

// logStartupBanner logs version information on daemon startup.
func logStartupBanner() {
	fmt.Fprintf(os.Stderr, "coldkeep %s\n", Version)
	fmt.Fprintf(os.Stderr, "  Commit:     %s\n", Commit)
	fmt.Fprintf(os.Stderr, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(os.Stderr, "  Go:         %s\n", runtime.Version())
	fmt.Fprintf(os.Stderr, "  OS/Arch:    %s/%s\n\n", runtime.GOOS, runtime.GOARCH)
}

// loadConfig loads and validates the configuration, preferring the --config
// flag and falling back to the default search locations.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		candidates := []string{"coldkeep.yaml"}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".coldkeep", "coldkeep.yaml"))
		}
		candidates = append(candidates, svc.DefaultConfigPath())

		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no config file found (tried %s); specify one with --config",
				strings.Join(candidates, ", "))
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// openStore opens the metadata backend named by the config, wrapping it in
// an LRU cache when metadata.cache_size is set. The returned closer releases
// the backend connection.
func openStore(ctx context.Context, cfg *config.Config) (record.Store, func(), error) {
	var (
		store  record.Store
		closer func()
	)

	switch cfg.Metadata.Backend {
	case "", "memory":
		store = record.NewMemoryStore()
		closer = func() {}
	case "redis":
		rs, err := record.NewRedisStore(cfg.Metadata.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis metadata store: %w", err)
		}
		store = rs
		closer = func() { _ = rs.Close() }
	case "postgres":
		ps, err := record.NewPostgresStore(ctx, cfg.Metadata.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres metadata store: %w", err)
		}
		store = ps
		closer = func() { _ = ps.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown metadata backend %q", cfg.Metadata.Backend)
	}

	if cfg.Metadata.CacheSize > 0 {
		cached, err := record.NewCachedStore(store, cfg.Metadata.CacheSize)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("create metadata cache: %w", err)
		}
		store = cached
	}

	return store, closer, nil
}

// buildManager assembles the lifecycle manager: gateway, metadata store and,
// when events.nats_url is configured, the NATS event sink. The returned
// cleanup closes everything in reverse order.
func buildManager(ctx context.Context, cfg *config.Config) (*lifecycle.Manager, func(), error) {
	gateway, err := objstore.NewGateway(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	manager := lifecycle.NewManager(cfg, gateway, store)

	var sink *notify.NATSSink
	if cfg.Events.NATSURL != "" {
		sink, err = notify.NewNATSSink(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		manager.SetEventSink(sink)
	}

	cleanup := func() {
		if sink != nil {
			sink.Close()
		}
		closeStore()
	}
	return manager, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging()
	logStartupBanner()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The daemon config is authoritative for its own log level.
	config.ApplyLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutting down...")
		cancel()
	}()

	return runServeWithConfig(ctx, cfg)
}

func runServeWithConfig(ctx context.Context, cfg *config.Config) error {
	metrics.Init(Version)

	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var wg sync.WaitGroup
	if sweeper := lifecycle.NewSweeper(manager); sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	} else {
		log.Info().Msg("sweeper disabled")
	}

	var adminSrv *admin.Server
	if cfg.Admin.Listen != "" {
		adminSrv = admin.NewServer(cfg, manager)
		if err := adminSrv.Start(); err != nil {
			return err
		}
	} else {
		log.Info().Msg("admin API disabled (no admin.listen configured)")
	}

	log.Info().Str("version", Version).Msg("coldkeep is running")
	<-ctx.Done()

	if adminSrv != nil {
		if err := adminSrv.Stop(); err != nil {
			log.Warn().Err(err).Msg("admin server shutdown failed")
		}
	}
	wg.Wait()

	return nil
}

// runAsService runs the daemon as a system service.
// This is called when the service manager starts the application with the
// --service-run flag.
func runAsService() {
	setupServiceLogging()
	logStartupBanner()

	// Parse the service-specific flags manually
	var configPath string
	for i, arg := range os.Args {
		if (arg == "--config" || arg == "-c") && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}
	if configPath == "" {
		configPath = svc.DefaultConfigPath()
	}

	log.Info().Str("config", configPath).Msg("starting as service")

	cfg := &svc.ServiceConfig{
		Name:        svc.DefaultServiceName(),
		DisplayName: svc.DefaultDisplayName(),
		Description: svc.DefaultDescription(),
		ConfigPath:  configPath,
	}

	prg := &svc.Program{
		ConfigPath: configPath,
		RunServe:   runServeFromService,
	}

	if err := svc.Run(prg, cfg); err != nil {
		log.Fatal().Err(err).Msg("service error")
	}
}

// runServeFromService runs the daemon from within a service.
func runServeFromService(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	config.ApplyLogLevel(cfg.LogLevel)

	return runServeWithConfig(ctx, cfg)
}

func runAdminToken(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := admin.NewTokenVerifier(cfg.Admin.AuthSecret).Mint(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
