// Package main provides the cratedig service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"cratedig/internal/cache"
	"cratedig/internal/core"
	"cratedig/internal/enrich"
	"cratedig/internal/extract"
	httpserver "cratedig/internal/http"
	"cratedig/internal/i18n"
	"cratedig/internal/pipeline"
	"cratedig/internal/rekordbox"
	"cratedig/internal/spotify"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cratedig",
	Short: "cratedig - playlist retrieval and DJ-library reconciliation",
	Long: `cratedig resolves Spotify and Apple Music playlists into normalized track
lists, assigns stable track identity keys, and reconciles them against a
Rekordbox collection export.`,
	RunE: runCratedig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-markets", "", "comma-separated market cascade (default JP,US,GB,DE)")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("language", "en", "response language (en, ja)")
	rootCmd.PersistentFlags().Int("cache-ttl-seconds", 0, "result cache TTL override in seconds")
	rootCmd.PersistentFlags().Bool("extract-debug", false, "attach bounded extraction diagnostics to failures")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("CRATEDIG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if markets := viper.GetString("spotify-markets"); markets != "" {
		cfg.Spotify.Markets = cfg.Spotify.Markets[:0]
		for _, m := range strings.Split(markets, ",") {
			if m = strings.TrimSpace(strings.ToUpper(m)); m != "" {
				cfg.Spotify.Markets = append(cfg.Spotify.Markets, m)
			}
		}
	}

	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	cfg.Server.Port = viper.GetInt("server-port")
	if lang := viper.GetString("language"); lang != "" {
		cfg.Server.Language = lang
	}

	if ttl := viper.GetInt("cache-ttl-seconds"); ttl > 0 {
		cfg.Cache.TTL = time.Duration(ttl) * time.Second
	}
	cfg.Extract.Debug = viper.GetBool("extract-debug")

	cfg.Log.Level = viper.GetString("log-level")
	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}
	return builtLogger
}

func runCratedig(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting cratedig",
		zap.Strings("markets", config.Spotify.Markets),
		zap.String("language", config.Server.Language))

	loc := i18n.NewLocalizer(config.Server.Language)
	resultCache := cache.New(config.Cache, logger)
	spotifyClient := spotify.New(config.Spotify, loc, logger)

	browserPool := extract.NewBrowserPool(config.Extract, logger)
	engine := extract.NewEngine(config.Extract, browserPool, logger)

	mb := enrich.NewMusicBrainz(logger)
	enricher := enrich.New(config.Enrich, spotifyClient, mb, logger)

	pipe := pipeline.New(resultCache, spotifyClient, engine, enricher, logger)
	loader := rekordbox.NewLoader(config.Rekordbox, logger)
	httpServer := httpserver.NewServer(&config.Server, pipe, loader, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		browserPool.Close()
		return nil
	})

	logger.Info("cratedig started",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("cratedig stopped with error", zap.Error(err))
		return err
	}

	logger.Info("cratedig stopped gracefully")
	return nil
}
