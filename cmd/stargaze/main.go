// Package main is the Stargaze CLI entry point.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/stargaze/internal/archive"
	"github.com/hyperjump/stargaze/internal/cli"
	"github.com/hyperjump/stargaze/internal/config"
	"github.com/hyperjump/stargaze/internal/gallery"
	"github.com/hyperjump/stargaze/internal/imageprobe"
	"github.com/hyperjump/stargaze/internal/metrics"
	"github.com/hyperjump/stargaze/internal/modal"
	"github.com/hyperjump/stargaze/internal/models"
	"github.com/hyperjump/stargaze/internal/page"
	"github.com/hyperjump/stargaze/internal/server"
	"github.com/hyperjump/stargaze/internal/watcher"
	"github.com/hyperjump/stargaze/internal/web"
	"github.com/hyperjump/stargaze/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/stargaze/config.yaml"

const defaultProbeTimeout = 15 * time.Second

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred if present, and built-in defaults are used if
// neither file exists. Returns the config and the path that was actually loaded
// (empty when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
			if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
				cfg, err := config.Default(cwd)
				if err != nil {
					return nil, "", err
				}
				return cfg, "", nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "fetch":
		os.Exit(runFetch(os.Args[2:], os.Stdout, os.Stderr))
	case "init":
		os.Exit(runInit(os.Args[2:], os.Stdout, os.Stderr))
	case "version", "--version", "-v":
		fmt.Printf("stargaze version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func newArchiveClient(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *archive.Client {
	return archive.NewClient(archive.Options{
		BaseURL:   cfg.Archive.BaseURL,
		APIKey:    cfg.Archive.APIKey,
		UserAgent: cfg.Archive.UserAgent,
		Timeout:   cfg.Archive.Timeout,
	}, logger, archive.WithMetrics(m))
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (archive requests, reveal scheduling, config reloads)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("archive", cfg.Archive.BaseURL),
		zap.Bool("demo_key", cfg.Archive.APIKey == config.DemoAPIKey),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	client := newArchiveClient(cfg, logger, m)
	probeTimeout := cfg.Archive.Timeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	prober := imageprobe.NewProber(probeTimeout, cfg.Archive.UserAgent, logger)
	srv := server.NewServer(client, prober, cfg, logger, server.WithMetrics(m, reg))

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if resolvedConfigPath != "" {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		envPath := config.DotEnvPath(filepath.Dir(resolvedConfigPath))
		if abs, err := filepath.Abs(envPath); err == nil {
			envPath = abs
		}
		reload := func(path string) {
			next, err := config.Load(resolvedConfigPath)
			if err != nil {
				logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Debug("config reloaded", zap.String("path", path))
			srv.ApplyConfig(next)
		}
		watchSvc := watcher.NewWatcher(
			[]string{resolvedConfigPath, envPath},
			reload,
			func(path string) {
				if path == envPath {
					reload(path)
					return
				}
				logger.Warn("config file removed; keeping current settings", zap.String("path", path))
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		} else {
			logger.Info("watching config", zap.Strings("files", watchSvc.Files()))
		}
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// runInit writes a config file holding the built-in defaults. It refuses to
// overwrite an existing file unless --force is given.
func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(stderr, "%s already exists (use --force to overwrite)\n", *configPath)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(*configPath), 0755); err != nil {
		fmt.Fprintf(stderr, "Failed to create config directory: %v\n", err)
		return 1
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	if err := config.Save(*configPath, &cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *configPath)
	fmt.Fprintf(stdout, "Put %s in %s to use your own archive key.\n", config.EnvAPIKey,
		config.DotEnvPath(filepath.Dir(*configPath)))
	return 0
}

// alertWriter shows page alerts on a terminal stream.
type alertWriter struct {
	w io.Writer
}

func (a alertWriter) Alert(message string) {
	fmt.Fprintln(a.w, message)
}

// runFetch runs one search and prints the gallery. It returns the process exit code.
func runFetch(args []string, stdout, stderr io.Writer) int {
	now := time.Now()
	def := models.DefaultDateRange(now)

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	start := fs.String("start", def.StartString(), "first date, YYYY-MM-DD")
	end := fs.String("end", def.EndString(), "last date, YYYY-MM-DD")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one image per line), or json (parseable)")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := zap.NewNop()
	if cfg.Debug || *debug {
		if logger, err = utils.NewLogger(true); err != nil {
			fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
			return 1
		}
		defer logger.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := fetchGallery(ctx, cfg, newArchiveClient(cfg, logger, nil), *start, *end, alertWriter{w: stderr}, logger)
	switch res.Outcome {
	case page.OutcomeInvalidInput:
		return 1
	case page.OutcomeFailed:
		fmt.Fprintf(stderr, "%s %v\n", res.Message, res.Err)
		return 1
	}
	if err := cli.WriteGallery(stdout, cli.NewGalleryReport(res), format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

// fetchGallery runs the page controller once against an off-screen document.
func fetchGallery(ctx context.Context, cfg *config.Config, fetcher page.Fetcher, start, end string,
	alerter page.Alerter, logger *zap.Logger) page.Result {
	doc := web.NewDocument()
	mdl := modal.New(doc, nil, func() modal.Viewport {
		return modal.Viewport{Width: cfg.Modal.DefaultViewportWidth, Height: cfg.Modal.DefaultViewportHeight}
	}, modal.WithLogger(logger))
	renderer := gallery.NewRenderer(doc, mdl,
		gallery.WithScheduler(gallery.ImmediateScheduler{}),
		gallery.WithDelay(gallery.UniformDelay(nil, cfg.Gallery.MinRevealDelay, cfg.Gallery.MaxRevealDelay)),
		gallery.WithLogger(logger))
	ctrl := page.NewController(page.StaticRange{Start: start, End: end}, fetcher, renderer, doc, alerter,
		page.WithLogger(logger))
	return ctrl.Search(ctx)
}

func printUsage() {
	fmt.Println(`stargaze - Astronomy picture of the day gallery

Usage:
  stargaze server [flags]    Start the HTTP server (HTML gallery and JSON API)
  stargaze fetch [flags]     Fetch a date range and print the gallery
  stargaze init [flags]      Write a config file with the default settings
  stargaze version           Show version
  stargaze help              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/stargaze/config.yaml, then ./config.yaml)
  --debug            Enable debug logging

Fetch Flags:
  --config string    Config file path
  --start string     First date, YYYY-MM-DD (default: nine days ago)
  --end string       Last date, YYYY-MM-DD (default: today)
  --output string    Output format: text, compact, or json (default: text)
  --debug            Enable debug logging

Init Flags:
  --config string    File to write (default: config.yaml)
  --force            Overwrite an existing file

Environment (process env wins over .env next to the config file):
  APOD_API_KEY       Archive API key (default: DEMO_KEY)
  APOD_BASE_URL      Archive base URL (default: https://api.nasa.gov)

Examples:
  stargaze server
  stargaze init
  stargaze fetch
  stargaze fetch --start 2024-01-01 --end 2024-01-07
  stargaze fetch --output json --start 2024-01-01 --end 2024-01-07`)
}
