package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatgraft/internal/chunk"
	"github.com/user/chatgraft/internal/config"
	"github.com/user/chatgraft/internal/phantom"
	"github.com/user/chatgraft/internal/rehome"
	"github.com/user/chatgraft/internal/store"
	"github.com/user/chatgraft/pkg/oracle"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "chatgraft",
	Short:         "Reconstruct, transform and re-synthesize hosted conversation trees",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".chatgraft", "config.json"),
		"config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// app bundles the wired runtime shared by all commands.
type app struct {
	cfg     *config.Config
	client  *store.Client
	files   *store.FileClient
	acc     *store.Accessor
	overlay *phantom.Store
	engine  *phantom.Engine
	chunker *chunk.Chunker
	rehomer *rehome.Rehomer
}

func newApp() (*app, error) {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	client := store.NewClient(oracle.Config{
		BaseURL: cfg.Store.BaseURL,
		APIKey:  cfg.Store.APIKey,
		Org:     cfg.Store.Org,
		Model:   cfg.Oracle.Model,
	})
	files := store.NewFileClient(client)

	overlay, err := phantom.Open(cfg.OverlayDBPath())
	if err != nil {
		return nil, err
	}
	pipe := store.NewPipeline()
	engine := phantom.NewEngine(overlay)
	engine.Register(pipe)

	var est chunk.Estimator
	if cfg.Estimator == "tiktoken" {
		te, err := chunk.NewTiktokenEstimator(cfg.Oracle.Model)
		if err != nil {
			slog.Warn("tiktoken estimator unavailable, using heuristic", "error", err)
		} else {
			est = te
		}
	}

	return &app{
		cfg:     cfg,
		client:  client,
		files:   files,
		acc:     store.NewAccessor(client, pipe),
		overlay: overlay,
		engine:  engine,
		chunker: chunk.New(est),
		rehomer: rehome.New(files, time.Duration(cfg.Rehome.DelayMillis)*time.Millisecond),
	}, nil
}

func (a *app) Close() {
	if err := a.overlay.Close(); err != nil {
		slog.Warn("close overlay db", "error", err)
	}
}
