package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/api"
	"github.com/JakeFAU/miles-crawler/internal/clock/system"
	"github.com/JakeFAU/miles-crawler/internal/config"
	"github.com/JakeFAU/miles-crawler/internal/crawler"
	"github.com/JakeFAU/miles-crawler/internal/engine"
	collyfetcher "github.com/JakeFAU/miles-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/miles-crawler/internal/hash/sha256"
	"github.com/JakeFAU/miles-crawler/internal/id/uuid"
	"github.com/JakeFAU/miles-crawler/internal/logging"
	"github.com/JakeFAU/miles-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/miles-crawler/internal/storage/local"
)

var errMissingURL = errors.New("missing required URL argument")

// newRootCmd builds the miles command. Program output (announcements and the
// summary) goes to stdout; errors and usage go to the command's error writer.
func newRootCmd(stdout io.Writer) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "miles [-d DESTINATION] [-n WORKERS] [-f TYPES]... URL",
		Short: "Download the images, audio and documents referenced by one web page.",
		Long: `miles fetches a single web page, finds references to resources of the
selected types (jpg, mp3, png, pdf; all of them by default) and downloads
them concurrently into DESTINATION, then prints how much was transferred
and how fast.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// The destination exists even when the URL is missing.
			if err := local.EnsureDir(cfg.Crawl.Destination); err != nil {
				return err
			}
			if len(args) == 0 {
				return errMissingURL
			}
			cmd.SilenceUsage = true

			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			return crawl(cmd.Context(), cfg, args[0], stdout, logger)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringP("destination", "d", ".", "directory the resources are saved into (created if missing)")
	flags.IntP("workers", "n", 1, "number of concurrent downloads")
	flags.StringSliceP("types", "f", nil, "resource types to fetch: jpg, mp3, png, pdf (repeatable or comma-separated; default all)")
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file")
	flags.BoolP("verbose", "v", false, "human-readable development logging")
	flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	flags.Int("timeout", 30, "per-request timeout in seconds")
	flags.String("user-agent", "", "User-Agent header sent with every request")
	flags.Int("max-body", 0, "maximum response size in bytes (0 = unlimited)")
	flags.Bool("respect-robots", false, "honor robots.txt")
	flags.Float64("rate", 0, "maximum requests per second per host (0 = unlimited)")
	flags.Int("burst", 1, "per-host burst size when --rate is set")
	flags.String("metrics-addr", "", "serve /metrics and /healthz on this address while crawling")

	return cmd
}

func crawl(ctx context.Context, cfg config.Config, url string, stdout io.Writer, logger *zap.Logger) error {
	if cfg.Metrics.Addr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := api.NewServer(logger.Named("api")).ListenAndServe(srvCtx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
		defer func() {
			stopServer()
			<-done
		}()
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.Timeout(),
		MaxBodySize:   cfg.HTTP.MaxBodyBytes,
	})
	out := engine.NewSyncWriter(stdout)

	eng := engine.New(engine.Dependencies{
		Extractor: crawler.NewExtractor(fetcher, logger.Named("extractor")),
		Retriever: crawler.NewRetriever(
			fetcher,
			local.New(),
			out,
			logger.Named("retriever"),
			crawler.WithHasher(sha256.New()),
		),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.HTTP.RatePerHost,
			DefaultBurst: cfg.HTTP.Burst,
		}),
		Clock:  system.New(),
		IDs:    uuid.New(),
		Report: out,
		Logger: logger.Named("engine"),
	})

	eng.Crawl(ctx, url, crawler.ParseTypes(cfg.Crawl.Types), cfg.Crawl.Destination, cfg.Crawl.Workers)
	return nil
}

// Execute runs the command line and exits non-zero on configuration errors.
// SIGINT and SIGTERM cancel the crawl; the summary is still printed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
