package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tilecache "github.com/always-cache/tile-cache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	dbFilenameFlag     string
	redisAddrFlag      string
	limitFlag          int
	ignoreSearchFlag   bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to fetch tiles from (overrides config)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&providerFlag, "provider", "", "Store provider: sqlite, redis, memory or none (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&redisAddrFlag, "redis", "", "Redis address for the redis provider")
	flag.IntVar(&limitFlag, "limit", 0, "Number of entries to keep (overrides config)")
	flag.BoolVar(&ignoreSearchFlag, "ignore-search", false, "Leave the query string out of cache keys")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	config := tilecache.DefaultFileConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = tilecache.LoadConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not load config")
		}
	}
	applyFlags(&config)

	setupLogging(config.Log)

	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	origin, _ := config.OriginURL()

	provider, closeStore, err := config.Store.OpenStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open store")
	}
	defer closeStore()

	cacheConfig := config.TileCacheConfig(provider)
	cacheConfig.Logger = &log.Logger
	cache, err := tilecache.New(cacheConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create cache")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: tilecache.NewHandler(cache, origin, &http.Client{Timeout: 30 * time.Second}, log.Logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down server")
		}
	}()

	log.Info().Msgf("Caching tiles from %s on port %v (%s store)", origin.String(), config.Port, config.Store.Provider)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server failed")
	}

	if err := cache.Close(); err != nil {
		log.Error().Err(err).Msg("Could not close cache")
	}
}

// applyFlags overrides the config with the flags that were set.
func applyFlags(config *tilecache.FileConfig) {
	if originFlag != "" {
		config.Origin = originFlag
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if providerFlag != "" {
		config.Store.Provider = providerFlag
	}
	if dbFilenameFlag != "" {
		config.Store.Path = dbFilenameFlag
	}
	if redisAddrFlag != "" {
		config.Store.RedisAddr = redisAddrFlag
	}
	if limitFlag != 0 {
		config.Cache.Limit = limitFlag
	}
	if ignoreSearchFlag {
		config.Cache.IgnoreSearch = true
	}
	if verbosityTraceFlag {
		config.Log.Trace = true
	}
	if logFilenameFlag != "" {
		config.Log.File = logFilenameFlag
	}
}

func setupLogging(config tilecache.LogConfig) {
	// set log level
	logLevel := zerolog.DebugLevel
	if config.Trace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.File != "" {
		if logFileOutput, err := os.OpenFile(config.File, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()
}
