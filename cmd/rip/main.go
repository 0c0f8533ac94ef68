package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dzipyramid/pyramidtiff"
	"github.com/dzipyramid/pyramidtiff/internal/dzisrc"
	"github.com/dzipyramid/pyramidtiff/internal/metrics"
)

var (
	output            string
	tileSize          int
	quality           int
	noSoftwareField   bool
	useSharedTables   bool
	maxRetries        int
	retryIntervalMS   int
	verbose           bool
	metricsAddr       string
)

var rootCmd = &cobra.Command{
	Use:          "rip <source-uri>",
	Short:        "convert a Deep Zoom Image pyramid into a tiled pyramid TIFF",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runRip,
}

func init() {
	rootCmd.Flags().StringVar(&output, "output", "", "output TIFF path (required)")
	rootCmd.Flags().IntVar(&tileSize, "tile-size", 256, "output tile side in pixels, must be a positive multiple of 16")
	rootCmd.Flags().IntVar(&quality, "quality", 75, "JPEG quality [1,100]")
	rootCmd.Flags().BoolVar(&noSoftwareField, "no-software-field", false, "omit the TIFF Software tag")
	rootCmd.Flags().BoolVar(&useSharedTables, "use-shared-quantization-tables", false, "share one JPEGTables field across all tiles of an IFD instead of embedding per-tile tables")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "HTTP tile fetch retry attempts")
	rootCmd.Flags().IntVar(&retryIntervalMS, "retry-interval-ms", 1000, "delay between HTTP tile fetch retries")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address in addition to the default progress log")
	_ = rootCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRip(cmd *cobra.Command, args []string) error {
	sourceURI := args[0]

	level := "info"
	if verbose {
		level = "debug"
	}
	log, err := pyramidtiff.NewLogger(level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	runID := uuid.Must(uuid.NewRandom()).String()
	log = log.With(zap.String("run_id", runID))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Warn("interrupt received, cancelling")
		cancel()
	}()

	cfg, err := pyramidtiff.NewConfig(
		pyramidtiff.OutputTileSize(tileSize),
		pyramidtiff.Quality(quality),
		pyramidtiff.SharedQuantizationTables(useSharedTables),
		pyramidtiff.SoftwareTag(softwareTagValue()),
		pyramidtiff.MaxRetries(maxRetries),
		pyramidtiff.RetryIntervalMillis(retryIntervalMS),
	)
	if err != nil {
		return err
	}

	src, err := openSource(ctx, sourceURI, cfg, log)
	if err != nil {
		return err
	}

	var sink pyramidtiff.ProgressSink = pyramidtiff.LogSink{Log: log}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		msink := metrics.NewSink(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer server.Close()
		sink = multiSink{msink, sink}
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := pyramidtiff.Rip(ctx, src, f, cfg, sink, log); err != nil {
		return fmt.Errorf("rip failed: %w", err)
	}
	return nil
}

func softwareTagValue() string {
	if noSoftwareField {
		return ""
	}
	return "pyramidtiff"
}

// multiSink fans progress events out to several sinks; duplicated here
// (rather than exported from the pyramidtiff package) since it is purely a
// CLI wiring concern, not part of the engine's public API.
type multiSink []pyramidtiff.ProgressSink

func (m multiSink) StartBase(n int) {
	for _, s := range m {
		s.StartBase(n)
	}
}
func (m multiSink) BaseProgress(done, total int) {
	for _, s := range m {
		s.BaseProgress(done, total)
	}
}
func (m multiSink) CompleteBase(n int, bytes int64) {
	for _, s := range m {
		s.CompleteBase(n, bytes)
	}
}
func (m multiSink) StartPyramid(n int) {
	for _, s := range m {
		s.StartPyramid(n)
	}
}
func (m multiSink) StartLayer(layer, n, w, h int) {
	for _, s := range m {
		s.StartLayer(layer, n, w, h)
	}
}
func (m multiSink) LayerProgress(layer, done, total int) {
	for _, s := range m {
		s.LayerProgress(layer, done, total)
	}
}
func (m multiSink) CompleteLayer(layer, n int, bytes int64) {
	for _, s := range m {
		s.CompleteLayer(layer, n, bytes)
	}
}
func (m multiSink) CompletePyramid(n int) {
	for _, s := range m {
		s.CompletePyramid(n)
	}
}

// openSource resolves sourceURI into a concrete pyramidtiff.Source: file://
// paths are sniffed for a raw raster vs. a DZI manifest, s3:// paths use
// the S3 source, and everything else is treated as an HTTP(S) manifest URL.
func openSource(ctx context.Context, sourceURI string, cfg pyramidtiff.Config, log *zap.Logger) (pyramidtiff.Source, error) {
	u, err := url.Parse(sourceURI)
	if err != nil {
		return nil, fmt.Errorf("parse source uri: %w", err)
	}

	switch u.Scheme {
	case "file", "":
		p := u.Path
		if p == "" {
			p = sourceURI
		}
		isManifest, err := dzisrc.IsDZIManifest(p)
		if err != nil {
			return nil, err
		}
		if isManifest {
			return dzisrc.NewLocalSource(p)
		}
		return dzisrc.NewRasterSource(p)
	case "s3":
		endpoint := os.Getenv("PYRAMIDTIFF_S3_ENDPOINT")
		accessKey := os.Getenv("PYRAMIDTIFF_S3_ACCESS_KEY")
		secretKey := os.Getenv("PYRAMIDTIFF_S3_SECRET_KEY")
		bucket := u.Host
		key := strings.TrimPrefix(u.Path, "/")
		return dzisrc.NewS3Source(ctx, endpoint, accessKey, secretKey, true, bucket, key)
	default:
		retryInterval := time.Duration(retryIntervalMS) * time.Millisecond
		return dzisrc.NewHTTPSource(ctx, sourceURI, maxRetries, retryInterval, log)
	}
}
