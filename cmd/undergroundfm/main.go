// Package main provides the undergroundfm service entry point.
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

	"undergroundfm/internal/classify"
	"undergroundfm/internal/core"
	"undergroundfm/internal/dedup"
	"undergroundfm/internal/genre"
	httpserver "undergroundfm/internal/http"
	"undergroundfm/internal/prefs"
	"undergroundfm/internal/recommend"
	"undergroundfm/internal/scoring"
	"undergroundfm/internal/source"
	"undergroundfm/internal/tagger"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "undergroundfm",
	Short: "undergroundfm - Underground music discovery service",
	Long: `undergroundfm surfaces underground and emerging artists from public music
metadata, scores how underground each track is, filters mainstream and
unofficial releases and personalizes the ranking per user.`,
	RunE: runService,
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
	rootCmd.PersistentFlags().String("source-provider", "lastfm", "metadata source (lastfm, spotify)")
	rootCmd.PersistentFlags().String("lastfm-api-key", "", "Last.fm API key")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("tagger-provider", "none", "genre tagger provider (openai, anthropic, none)")
	rootCmd.PersistentFlags().String("tagger-model", "", "genre tagger model name")
	rootCmd.PersistentFlags().String("tagger-api-key", "", "genre tagger API key")
	rootCmd.PersistentFlags().String("prefs-path", "./undergroundfm.db", "preference database path")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().Int("rate-per-minute", 30, "per-client API request limit")

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

	viper.SetEnvPrefix("UNDERGROUNDFM")
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

	if provider := viper.GetString("source-provider"); provider != "" {
		cfg.Source.Provider = provider
	}

	cfg.LastFM.APIKey = viper.GetString("lastfm-api-key")
	if baseURL := viper.GetString("lastfm-base-url"); baseURL != "" {
		cfg.LastFM.BaseURL = baseURL
	}

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")

	if provider := viper.GetString("tagger-provider"); provider != "" {
		cfg.Tagger.Provider = provider
	}
	cfg.Tagger.Model = viper.GetString("tagger-model")
	cfg.Tagger.APIKey = viper.GetString("tagger-api-key")

	if path := viper.GetString("prefs-path"); path != "" {
		cfg.Prefs.Path = path
	}

	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server-port"); port != 0 {
		cfg.Server.Port = port
	}

	if rate := viper.GetInt("rate-per-minute"); rate != 0 {
		cfg.Discovery.RatePerMinute = rate
	}
	if pageSize := viper.GetInt("page-size"); pageSize != 0 {
		cfg.Discovery.PageSize = pageSize
	}

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

const noneProvider = "none"

func runService(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting undergroundfm",
		zap.String("version", "1.0.0"),
		zap.String("source_provider", config.Source.Provider),
		zap.String("tagger_provider", config.Tagger.Provider))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	prefsStore, err := prefs.Open(config.Prefs.Path, logger.Named("prefs"))
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	defer prefsStore.Close()

	metadataSource, err := source.NewSource(ctx, config, logger.Named("source"))
	if err != nil {
		return fmt.Errorf("failed to create metadata source: %w", err)
	}

	var genreTagger core.GenreTagger
	if config.Tagger.Provider != noneProvider && config.Tagger.Provider != "" {
		genreTagger, err = tagger.NewTagger(&config.Tagger, logger.Named("tagger"))
		if err != nil {
			return fmt.Errorf("failed to create genre tagger: %w", err)
		}
	}

	enricher := genre.NewEnricher(metadataSource, genreTagger, logger.Named("genre"))
	classifier := classify.NewClassifier(metadataSource, logger.Named("classify"))
	cleaner := dedup.NewDeduplicator(classifier, logger.Named("dedup"))
	scorer := scoring.NewScorer()

	assembler := recommend.NewAssembler(
		metadataSource,
		prefsStore,
		prefsStore,
		scorer,
		enricher,
		cleaner,
		config.Discovery,
		logger.Named("recommend"),
	)

	server := httpserver.NewServer(
		&config.Server,
		assembler,
		prefsStore,
		config.Discovery,
		logger.Named("http"),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				server.RefreshStats()
			}
		}
	})

	logger.Info("undergroundfm started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("undergroundfm stopped with error", zap.Error(err))
		return err
	}

	logger.Info("undergroundfm stopped gracefully")
	return nil
}

func validateConfig() error {
	switch config.Source.Provider {
	case "lastfm":
		if config.LastFM.APIKey == "" {
			return fmt.Errorf("last.fm API key is required")
		}
	case "spotify":
		if config.Spotify.ClientID == "" {
			return fmt.Errorf("spotify client ID is required")
		}
		if config.Spotify.ClientSecret == "" {
			return fmt.Errorf("spotify client secret is required")
		}
	default:
		return fmt.Errorf("unknown source provider: %s", config.Source.Provider)
	}

	if config.Tagger.Provider != noneProvider && config.Tagger.Provider != "" {
		if config.Tagger.APIKey == "" {
			return fmt.Errorf("tagger API key is required for provider: %s", config.Tagger.Provider)
		}
	}

	return nil
}
