// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-rag CLI.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-rag/internal/secrets"
	"github.com/pdiddy/research-rag/internal/telemetry"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .env and .secrets/ at startup.
	loadedSecrets map[string]string

	logger  = zerolog.Nop()
	metrics *telemetry.Metrics
)

// secretDefault returns fallback if set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the research-rag CLI.
var rootCmd = &cobra.Command{
	Use:   "research-rag",
	Short: "Multi-source paper research with retrieval-augmented answers",
	Long: `research-rag searches arXiv, Semantic Scholar, and OpenAlex in parallel,
merges and ranks the results, and ingests the papers into a vector index
kept in a durable blob store. Questions are answered from the retrieved
paper chunks by a local generation model.

Typical flow: research a topic, ingest it, then retrieve or ask.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = telemetry.NewLogger(os.Stderr, viper.GetString("log.level"), viper.GetBool("log.json"))

		envFile, _ := cmd.Flags().GetString("env-file")
		if err := secrets.ApplyDotEnv(envFile); err != nil {
			return err
		}
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Resolve(secretsDir, envFile)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}

		metrics = telemetry.NewMetrics()
		if addr := viper.GetString("metrics.addr"); addr != "" {
			serveMetrics(addr)
		}
		return nil
	},
}

// serveMetrics exposes the Prometheus registry on addr for the lifetime of
// the process.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./research-rag.yaml or ~/.config/research-rag/research-rag.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of secret files (one file per key)")
	pf.String("env-file", ".env", "dotenv file with secrets and environment overrides")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "write logs as JSON")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	pf.String("index-backend", "", "vector index store: local or s3")
	pf.String("embedding-provider", "", "embedding model provider: ollama or hashing")

	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.json", pf.Lookup("log-json"))
	_ = viper.BindPFlag("metrics.addr", pf.Lookup("metrics-addr"))
	_ = viper.BindPFlag("index.backend", pf.Lookup("index-backend"))
	_ = viper.BindPFlag("embedding.provider", pf.Lookup("embedding-provider"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-rag")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-rag"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_RAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
