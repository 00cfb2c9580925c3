package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/hybridocr/internal/config"
	job "github.com/markdave123-py/hybridocr/internal/core/extraction_job"
	"github.com/markdave123-py/hybridocr/internal/presenter"
)

type options struct {
	pdfPath string
	url     string
	token   string
	theme   string
	timeout time.Duration
	verbose bool
}

func main() {
	cfg := config.LoadConfig()
	opts, err := parseFlags(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(cfg *config.Config) (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: extract [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.url, "url", cfg.ExtractAPIURL, "Base URL of the extraction service")
	flag.StringVar(&opts.token, "token", cfg.APIToken, "Bearer token sent with the upload")
	flag.StringVar(&opts.theme, "theme", "dark", "Output theme: dark, light or plain")
	flag.DurationVar(&opts.timeout, "timeout", cfg.ExtractTimeout, "Give up on the request after this long")
	flag.BoolVar(&opts.verbose, "v", false, "Log HTTP and job events to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	return opts, nil
}

var errJobFailed = errors.New("extraction failed")

func run(opts options, stdout, stderr io.Writer) error {
	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	doc, err := job.LoadDocument(opts.pdfPath)
	if err != nil {
		return err
	}

	theme := presenter.ThemeByName(opts.theme)
	ctrl := job.NewController(
		job.NewHTTPTransport(opts.url, job.WithBearerToken(opts.token), job.WithTransportLogger(logger)),
		job.WithLogger(logger),
	)

	var (
		mu       sync.Mutex
		lastLine string
		final    job.Snapshot
	)
	unsubscribe := ctrl.Subscribe(func(s job.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Stage.Terminal() {
			final = s
			return
		}
		if line := presenter.StatusLine(s); line != lastLine {
			lastLine = line
			_ = presenter.RenderStatus(stderr, s, theme)
		}
	})
	defer unsubscribe()

	if err := ctrl.SetDocument(doc); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			_ = ctrl.Cancel()
		case <-ctx.Done():
		}
	}()

	if err := ctrl.StartExtraction(ctx); err != nil {
		return err
	}

	// subscribers have seen the terminal snapshot by the time StartExtraction returns
	mu.Lock()
	s := final
	mu.Unlock()
	if err := presenter.Render(stdout, s, theme); err != nil {
		return err
	}
	if s.Stage == job.StageFailed {
		return errJobFailed
	}
	return nil
}
