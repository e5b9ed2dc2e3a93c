package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/balances"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/cache"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/config"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/fees"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/router"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/rpc"
	socketquery "github.com/Cogwheel-Validator/spectra-bridge/planner/socket_query"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the RPC package
	rpc.SetLogger(log)
}

func main() {
	configServer := flag.String("config", "", "toml config file for the planner server, env only when empty")
	configChains := flag.String("config-chains", "", "generated chain config, overrides chain_config_path")
	flag.Parse()

	var serverConfigPath *string
	if *configServer != "" {
		serverConfigPath = configServer
	}
	serverConfig, err := config.LoadPlannerServerConfig(serverConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load server config")
	}
	if *configChains != "" {
		serverConfig.ChainConfigPath = *configChains
	}

	log.Info().
		Str("server_config", *configServer).
		Str("chains_config", serverConfig.ChainConfigPath).
		Str("strategy", serverConfig.Strategy).
		Msg("Starting Spectra Bridge planner")

	chains, schedule, err := config.NewChainConfigLoader().LoadFromFile(serverConfig.ChainConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load chain config")
	}
	log.Info().Int("count", len(chains)).Msg("Loaded chains")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared cache for whole responses and single quotes
	store, err := cache.New(serverConfig.CacheBackend, serverConfig.RedisURL, serverConfig.CacheMaxEntries, serverConfig.CacheTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache")
	}
	defer func() {
		_ = store.Close()
	}()

	// Balances come from on-chain queries unless static balances are configured
	var reader router.BalanceReader
	var registry *balances.Registry
	if static := serverConfig.StaticBalanceMap(); static != nil {
		reader = balances.NewStaticReader(static)
		log.Warn().Int("chains", len(static)).Msg("Using static balances, no RPC queries will be made")
	} else {
		registry, err = balances.DialRegistry(ctx, chains)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to dial chain RPC endpoints")
		}
		defer registry.Close()
		reader = balances.NewEVMReader(registry, balances.RetryConfig{
			MaxAttempts:     uint(serverConfig.BalanceAttempts),
			InitialInterval: time.Second,
			AttemptTimeout:  serverConfig.BalanceTimeout(),
		})
	}

	quoter, socketClient := buildQuoter(serverConfig, schedule, store, registry)
	if socketClient != nil {
		defer socketClient.Close()
	}

	strategy, err := router.NewStrategy(serverConfig.Strategy, quoter.Schedule(), serverConfig.ExhaustiveMaxCandidates)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create allocation strategy")
	}
	allocator := router.NewAllocator(chains, quoter,
		router.WithStrategy(strategy),
		router.WithDustThreshold(serverConfig.Dust()),
	)
	planner := router.NewPlanner(chains, allocator, reader, router.WithRouteCache(store, serverConfig.CacheTTL()))

	server, err := rpc.NewServer(ctx, buildServerConfig(serverConfig, store), planner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// buildQuoter prefers the Socket aggregator when an API key is set and always keeps the fallback formula
func buildQuoter(
	cfg *config.PlannerServerConfig,
	schedule fees.Schedule,
	store cache.Store,
	registry *balances.Registry,
) (*fees.Quoter, *socketquery.SocketQueryClient) {
	opts := []fees.QuoterOption{fees.WithCache(store, cfg.CacheTTL())}
	if cfg.GasPriceAware && registry != nil {
		opts = append(opts, fees.WithGasPricer(registry))
	}

	if cfg.SocketAPIKey == "" || len(cfg.SocketURLs) == 0 {
		log.Warn().Msg("No socket api key, every quote uses the fallback fee formula")
		return fees.NewQuoter(nil, schedule, opts...), nil
	}

	client, err := socketquery.NewSocketQueryClientWithFailover(
		cfg.SocketURLs[0],
		cfg.SocketURLs[1:],
		cfg.SocketAPIKey,
		socketquery.DefaultFailoverConfig(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create socket client")
	}
	return fees.NewQuoter(client, schedule, opts...), client
}

// buildServerConfig converts the loaded PlannerServerConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.PlannerServerConfig, store cache.Store) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  true,
		RequestTimeout: 60 * time.Second,
	}

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	// readiness follows the shared cache when it is remote
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		serverConfig.ReadyCheck = pinger.Ping
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     cfg.ServiceName,
			ServiceVersion:  cfg.ServiceVersion,
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
