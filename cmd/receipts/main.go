package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/aluiziolira/oofd-receipts/config"
	"github.com/aluiziolira/oofd-receipts/models"
	"github.com/aluiziolira/oofd-receipts/pipeline"
	"github.com/aluiziolira/oofd-receipts/scraper"
)

const paramsTimeLayout = "2006-01-02T15:04:05"

// globals are the flags shared by every subcommand.
type globals struct {
	renderer      *string
	chromePath    *string
	renderTimeout *time.Duration
	readySelector *string
	baseURL       *string
	timezone      *string
	output        *string
	format        *string
	kafkaBrokers  *string
	kafkaTopic    *string
	metricsAddr   *string
	verbose       *bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			slog.Error("receipts failed", slog.Any("error", err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	defaults := config.DefaultConfig()
	rootFlags := ff.NewFlagSet("receipts")
	g := globals{
		renderer:      rootFlags.StringLong("renderer", defaults.Renderer, "Page renderer: chrome or static"),
		chromePath:    rootFlags.StringLong("chrome-path", "", "Chrome executable (default: looked up on PATH)"),
		renderTimeout: rootFlags.DurationLong("render-timeout", defaults.RenderTimeout, "Maximum time to wait for the receipt to render"),
		readySelector: rootFlags.StringLong("ready-selector", defaults.ReadySelector, "Element that marks the receipt as rendered"),
		baseURL:       rootFlags.StringLong("base-url", defaults.LookupBaseURL, "Receipt lookup site"),
		timezone:      rootFlags.StringLong("timezone", defaults.Timezone, "Timezone receipt timestamps are printed in"),
		output:        rootFlags.StringLong("output", "", "Output file path (default: output/receipts.<ext> for the format)"),
		format:        rootFlags.StringLong("format", defaults.OutputFormat, "Comma separated sinks: csv, json, dual (csv+json), bolt, kafka, stdout"),
		kafkaBrokers:  rootFlags.StringLong("kafka-brokers", "", "Comma separated Kafka brokers"),
		kafkaTopic:    rootFlags.StringLong("kafka-topic", defaults.KafkaTopic, "Kafka topic for the kafka format"),
		metricsAddr:   rootFlags.StringLong("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)"),
		verbose:       rootFlags.BoolLong("verbose", "Enable verbose logging"),
	}

	qrCmd := &ff.Command{
		Name:      "qr",
		Usage:     "receipts qr [FLAGS] <image>...",
		ShortHelp: "decode receipt QR codes from images or PDFs and scrape them",
		Flags:     ff.NewFlagSet("qr").SetParent(rootFlags),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("qr: at least one image is required")
			}
			sources := make([]pipeline.Source, 0, len(args))
			for _, path := range args {
				sources = append(sources, pipeline.Source{ImagePath: path})
			}
			return scrape(ctx, g, sources)
		},
	}

	paramsFlags := ff.NewFlagSet("params").SetParent(rootFlags)
	var (
		id       = paramsFlags.StringLong("id", "", "Receipt id (i)")
		fiscalID = paramsFlags.StringLong("fiscal-id", "", "Fiscal id (f)")
		total    = paramsFlags.StringLong("total", "", "Receipt total (s)")
		when     = paramsFlags.StringLong("time", "", "Purchase time as "+paramsTimeLayout)
	)
	paramsCmd := &ff.Command{
		Name:      "params",
		Usage:     "receipts params --id ID --fiscal-id FID --total SUM --time TIME",
		ShortHelp: "scrape a receipt from manually entered parameters",
		Flags:     paramsFlags,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, err := buildConfig(g)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			p, err := parseParams(*id, *fiscalID, *total, *when, loc)
			if err != nil {
				return err
			}
			return scrape(ctx, g, []pipeline.Source{{Params: &p}})
		},
	}

	urlCmd := &ff.Command{
		Name:      "url",
		Usage:     "receipts url [FLAGS] <url>...",
		ShortHelp: "scrape receipts from lookup URLs",
		Flags:     ff.NewFlagSet("url").SetParent(rootFlags),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("url: at least one lookup URL is required")
			}
			sources := make([]pipeline.Source, 0, len(args))
			for _, u := range args {
				sources = append(sources, pipeline.Source{URL: u})
			}
			return scrape(ctx, g, sources)
		},
	}

	listFlags := ff.NewFlagSet("list").SetParent(rootFlags)
	dbPath := listFlags.StringLong("db", "output/receipts.db", "Archive written by the bolt format")
	listCmd := &ff.Command{
		Name:      "list",
		Usage:     "receipts list [--db PATH]",
		ShortHelp: "print archived receipts as JSON lines",
		Flags:     listFlags,
		Exec: func(_ context.Context, _ []string) error {
			return listArchive(*dbPath, os.Stdout)
		},
	}

	root := &ff.Command{
		Name:        "receipts",
		Usage:       "receipts [FLAGS] <SUBCOMMAND> ...",
		ShortHelp:   "scrape oofd.kz purchase receipts",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{qrCmd, paramsCmd, urlCmd, listCmd},
	}

	if err := root.Parse(args, ff.WithEnvVarPrefix("OOFD")); err != nil {
		selected := root.GetSelected()
		if selected == nil {
			selected = root
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(selected))
		return err
	}

	logOut := io.Writer(os.Stdout)
	if slices.Contains(config.ExpandFormats(*g.format), config.FormatStdout) {
		logOut = os.Stderr
	}
	logger, level := newLogger(logOut, *g.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root))
		}
		return err
	}
	return nil
}

func buildConfig(g globals) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Renderer = strings.ToLower(*g.renderer)
	cfg.ChromePath = *g.chromePath
	cfg.RenderTimeout = *g.renderTimeout
	cfg.ReadySelector = *g.readySelector
	cfg.LookupBaseURL = *g.baseURL
	cfg.Timezone = *g.timezone
	cfg.OutputFile = *g.output
	cfg.OutputFormat = strings.ToLower(*g.format)
	cfg.KafkaBrokers = config.SplitList(*g.kafkaBrokers)
	cfg.KafkaTopic = *g.kafkaTopic
	cfg.MetricsAddr = *g.metricsAddr
	cfg.Verbose = *g.verbose
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseParams(id, fiscalID, total, when string, loc *time.Location) (scraper.Params, error) {
	if id == "" || fiscalID == "" {
		return scraper.Params{}, fmt.Errorf("params: --id and --fiscal-id are required")
	}
	sum, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(total), ",", "."))
	if err != nil {
		return scraper.Params{}, fmt.Errorf("params: invalid --total %q: %w", total, err)
	}
	ts, err := time.ParseInLocation(paramsTimeLayout, strings.TrimSpace(when), loc)
	if err != nil {
		return scraper.Params{}, fmt.Errorf("params: invalid --time %q: %w", when, err)
	}
	return scraper.Params{ID: id, FiscalID: fiscalID, Total: sum, Time: ts}, nil
}

func scrape(ctx context.Context, g globals, sources []pipeline.Source) error {
	cfg, err := buildConfig(g)
	if err != nil {
		return err
	}

	slog.Info("starting scrape",
		slog.String("renderer", cfg.Renderer),
		slog.String("format", cfg.OutputFormat),
		slog.Int("inputs", len(sources)),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	p := pipeline.NewPipeline(s, writer)
	startTime := time.Now()
	result, runErr := p.Run(ctx, sources)
	if err := p.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result != nil {
		summaryOut := io.Writer(os.Stdout)
		if cfg.HasFormat(config.FormatStdout) {
			summaryOut = os.Stderr
		}
		printSummary(summaryOut, result, time.Since(startTime), describeOutput(cfg), p.GetMetrics())
	}
	if runErr != nil {
		return fmt.Errorf("scraping failed: %w", runErr)
	}

	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	formats := cfg.Formats()
	writers := make([]pipeline.OutputWriter, 0, len(formats))
	for _, format := range formats {
		w, err := newSink(cfg, format)
		if err != nil {
			for _, opened := range writers {
				opened.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return pipeline.NewMultiWriter(writers...), nil
}

func newSink(cfg *config.Config, format string) (pipeline.OutputWriter, error) {
	switch format {
	case config.FormatJSON:
		return pipeline.NewJSONWriter(cfg.OutputPath(format))
	case config.FormatCSV:
		return pipeline.NewCSVWriter(cfg.OutputPath(format))
	case config.FormatBolt:
		return pipeline.NewBoltWriter(cfg.OutputPath(format))
	case config.FormatKafka:
		return pipeline.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.FormatStdout:
		return pipeline.NewJSONStreamWriter(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func describeOutput(cfg *config.Config) string {
	var parts []string
	for _, format := range cfg.Formats() {
		switch format {
		case config.FormatKafka:
			parts = append(parts, "kafka topic "+cfg.KafkaTopic)
		case config.FormatStdout:
			parts = append(parts, "stdout")
		default:
			parts = append(parts, cfg.OutputPath(format))
		}
	}
	return strings.Join(parts, ", ")
}

func listArchive(path string, out io.Writer) error {
	records, err := pipeline.ListRecords(path)
	if err != nil {
		return err
	}
	writer := pipeline.NewJSONStreamWriter(out)
	if err := writer.Write(records); err != nil {
		return err
	}
	return writer.Close()
}

func printSummary(out io.Writer, result *models.BatchResult, duration time.Duration, output string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Scrape complete")

	attempted := result.TotalCount + result.ErrorCount
	successRate := 0.0
	if attempted > 0 {
		successRate = float64(result.TotalCount) / float64(attempted) * 100
	}
	items := 0
	for _, record := range result.Records {
		items += len(record.Receipt.Items)
	}

	fmt.Fprintf(out, "  Receipts:      %d\n", result.TotalCount)
	fmt.Fprintf(out, "  Line items:    %d\n", items)
	fmt.Fprintf(out, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(out, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(out, "  Skipped:       %d\n", result.SkippedCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(out, "  Error types:   %v\n", result.ErrorsByType)
	}
	if len(result.FailedInputs) > 0 {
		fmt.Fprintf(out, "  Failed inputs: %s\n", strings.Join(result.FailedInputs, ", "))
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(out, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", duration)
	fmt.Fprintf(out, "  Output:        %s\n", output)
	fmt.Fprintln(out, separator)
}

func newLogger(out io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
