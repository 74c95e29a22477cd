package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-monday/internal/pipeline"
	"github.com/ajitpratap0/tap-monday/pkg/compression"
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/connector/registry"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
	"github.com/ajitpratap0/tap-monday/pkg/logger"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
	"github.com/ajitpratap0/tap-monday/pkg/observability"

	// Register the connectors
	"github.com/ajitpratap0/tap-monday/pkg/connector/destinations/singer"
	"github.com/ajitpratap0/tap-monday/pkg/connector/sources/monday"
)

var version = "1.0.0"

type options struct {
	configPath  string
	catalogPath string
	statePath   string
	discover    bool
	about       bool
	showVersion bool
	format      string
	logLevel    string
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tap-monday",
		Short: "Singer tap for Monday.com",
		Long: `tap-monday extracts workspaces, boards, columns, groups, board views and items
from the Monday.com GraphQL API and writes them as Singer messages on stdout.

Example:
  tap-monday --config config.json --discover > catalog.json
  tap-monday --config config.json --catalog catalog.json --state state.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to the tap config file (JSON or YAML)")
	flags.BoolVarP(&opts.discover, "discover", "d", false, "Print the catalog of available streams and exit")
	flags.StringVar(&opts.catalogPath, "catalog", "", "Path to a catalog selecting the streams to sync")
	flags.StringVarP(&opts.statePath, "state", "s", "", "Path to the state emitted by a previous run")
	flags.BoolVar(&opts.about, "about", false, "Print tap metadata and exit")
	flags.StringVar(&opts.format, "format", "json", "Output format for --about (json, yaml)")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "Print the version and exit")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level in the config")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return root
}

func run(cmd *cobra.Command, opts *options) error {
	out := cmd.OutOrStdout()

	switch {
	case opts.showVersion:
		fmt.Fprintf(out, "tap-monday v%s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	case opts.about:
		return printAbout(out, opts.format)
	}

	if opts.configPath == "" {
		return errors.New(errors.ErrorTypeConfig, "--config is required")
	}
	tapCfg, err := config.LoadTapConfig(opts.configPath)
	if err != nil {
		return err
	}

	level := tapCfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
		tapCfg.LogLevel = level
	}
	if err := logger.Init(logger.Config{Level: level, Encoding: "json"}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "tap-monday-cli"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, log)
		defer shutdown()
	}

	if tapCfg.EnableTracing {
		if err := observability.InitTracing(observability.DefaultTracingConfig(version)); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	sourceConfig := tapCfg.SourceConfig()
	source, err := registry.CreateSource(monday.ConnectorName, sourceConfig)
	if err != nil {
		return err
	}
	if err := source.Initialize(ctx, sourceConfig); err != nil {
		return err
	}
	defer func() {
		if err := source.Close(context.Background()); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	if opts.discover {
		return discover(ctx, source, out)
	}

	if opts.catalogPath != "" {
		var catalog core.Catalog
		if err := readJSONFile(opts.catalogPath, &catalog); err != nil {
			return err
		}
		if err := source.SetCatalog(&catalog); err != nil {
			return err
		}
	}
	if opts.statePath != "" {
		state := core.State{}
		if err := readJSONFile(opts.statePath, &state); err != nil {
			return err
		}
		if err := source.SetState(state); err != nil {
			return err
		}
	}

	destConfig := tapCfg.DestinationConfig()
	destination, err := registry.CreateDestination(singer.ConnectorName, destConfig)
	if err != nil {
		return err
	}
	if d, ok := destination.(*singer.SingerDestination); ok {
		d.SetOutput(out)
	}
	if err := destination.Initialize(ctx, destConfig); err != nil {
		return err
	}
	defer func() {
		if err := destination.Close(context.Background()); err != nil {
			log.Warn("failed to close destination", zap.Error(err))
		}
	}()

	log.Info("starting sync",
		zap.String("config", opts.configPath),
		zap.String("catalog", opts.catalogPath),
		zap.String("state", opts.statePath))

	p := pipeline.NewSimplePipeline(source, destination, nil, log)
	return p.Run(ctx)
}

func discover(ctx context.Context, source core.Source, out io.Writer) error {
	catalog, err := source.Discover(ctx)
	if err != nil {
		return err
	}
	data, err := jsonpool.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode catalog")
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// readJSONFile decodes a catalog or state file. Compressed files are
// recognised by extension.
func readJSONFile(path string, v interface{}) error {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from a CLI flag
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to open file").WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.NewReader(f, compression.AlgorithmFromPath(path))
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read file").WithDetail("path", path)
	}
	if err := jsonpool.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse file").WithDetail("path", path)
	}
	return nil
}

type about struct {
	Name         string                    `json:"name" yaml:"name"`
	Version      string                    `json:"version" yaml:"version"`
	Description  string                    `json:"description" yaml:"description"`
	Capabilities []string                  `json:"capabilities" yaml:"capabilities"`
	Settings     []setting                 `json:"settings" yaml:"settings"`
	Connectors   []*registry.ConnectorInfo `json:"connectors" yaml:"connectors"`
}

type setting struct {
	Name        string `json:"name" yaml:"name"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description" yaml:"description"`
}

func printAbout(out io.Writer, format string) error {
	info := about{
		Name:         "tap-monday",
		Version:      version,
		Description:  "Singer tap for Monday.com",
		Capabilities: []string{"discover", "catalog", "state"},
		Settings: []setting{
			{config.KeyAuthToken, true, "Monday API token"},
			{config.KeyBoardLimit, false, fmt.Sprintf("Boards per page, default %d", config.DefaultBoardLimit)},
			{config.KeyItemLimit, false, fmt.Sprintf("Items per page, default %d", config.DefaultItemLimit)},
			{config.KeyWorkspaceLimit, false, fmt.Sprintf("Workspaces per page, default %d", config.DefaultWorkspaceLimit)},
			{config.KeyAPIURL, false, "GraphQL endpoint, default " + config.DefaultAPIURL},
			{config.KeyAPIVersion, false, "Value of the API-Version header, default " + config.DefaultAPIVersion},
			{config.KeyUserAgent, false, "Value of the User-Agent header"},
			{"request_timeout", false, "Per-request timeout, e.g. 30s"},
			{"rate_limit_per_sec", false, "Request rate limit, 0 for unlimited"},
			{"output_path", false, "Write messages to this file instead of stdout"},
			{"enable_tracing", false, "Export spans to stderr"},
			{"log_level", false, "debug, info, warn or error"},
		},
		Connectors: registry.ListConnectorInfo(),
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = jsonpool.MarshalIndent(info, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(info)
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported --format %q (json, yaml)", format)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode about")
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
