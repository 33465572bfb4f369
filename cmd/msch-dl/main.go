package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/handiism/msch-harvester/internal/config"
	"github.com/handiism/msch-harvester/internal/download"
	"github.com/handiism/msch-harvester/internal/dump"
	"github.com/handiism/msch-harvester/internal/http"
	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/progress"
)

func main() {
	// Command line flags
	var (
		configFlag      = flag.String("config", "", "Path to YAML config file")
		envFlag         = flag.String("env", ".env", "Path to .env file")
		dumpsFlag       = flag.String("dumps", "", "Dumps directory (overrides config)")
		outputFlag      = flag.String("output", "", "Schematics directory (overrides config)")
		concurrencyFlag = flag.Int("concurrency", 0, "Maximum parallel downloads (overrides config)")
		verboseFlag     = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag      = flag.Bool("dry-run", false, "Parse dumps without downloading")
	)

	flag.Parse()

	settings, err := config.LoadWithEnv(*configFlag, *envFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *dumpsFlag != "" {
		settings.DumpsPath = *dumpsFlag
	}
	if *outputFlag != "" {
		settings.SchematicsPath = *outputFlag
	}
	if *concurrencyFlag > 0 {
		settings.MaxConcurrentDownloads = *concurrencyFlag
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := settings.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	skipped, err := settings.SkippedCategories()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := progress.NewPrinter(os.Stdout, *verboseFlag)
	store := ioutils.NewOsStore()

	printer.Title("msch harvester: download")
	fmt.Println()

	dumps, errs := dump.NewLoader(store, printer.Func(), logger).Load(settings.DumpsPath)
	for _, err := range errs {
		if errors.Is(err, ioutils.ErrFilesystem) {
			fmt.Fprintf(os.Stderr, "Error reading dumps: %v\n", err)
			os.Exit(1)
		}
	}

	if *dryRunFlag {
		records := 0
		for _, d := range dumps {
			records += len(d.Schematics)
		}
		printer.Summary("Dry run - not downloading", [][2]string{
			{"Dumps", strconv.Itoa(len(dumps))},
			{"Rejected dumps", strconv.Itoa(len(errs))},
			{"Records", strconv.Itoa(records)},
		})
		return
	}

	client := http.NewClient(http.Options{
		Timeout:   settings.HTTPTimeout,
		UserAgent: settings.UserAgent,
	})

	scheduler := download.New(client, store, download.Options{
		Root:              settings.SchematicsPath,
		MaxConcurrent:     settings.MaxConcurrentDownloads,
		RateLimitCooldown: settings.RateLimitCooldown,
		Retry: download.RetryPolicy{
			MaxAttempts: settings.Retry.MaxAttempts,
			Cooldown:    settings.Retry.Cooldown,
			Exponent:    settings.Retry.Exponent,
			MaxCooldown: settings.Retry.MaxCooldown,
		},
		SkipExisting: settings.SkipExisting,
	}, printer.Func(), logger)

	ingested, err := dump.Enqueue(store, settings.SchematicsPath, dumps, skipped, scheduler, printer.Func())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error queueing downloads: %v\n", err)
		os.Exit(1)
	}
	scheduler.Close()

	fmt.Println()
	printer.Title(fmt.Sprintf("Downloading %d schematics...", ingested.Records))
	fmt.Println()

	report, err := scheduler.Run(ctx)

	fmt.Println()
	printer.Summary("Summary", [][2]string{
		{"Processed dumps", strconv.Itoa(ingested.Dumps)},
		{"Skipped dumps", strconv.Itoa(ingested.SkippedDumps)},
		{"Rejected dumps", strconv.Itoa(len(errs))},
		{"Queued schematics", strconv.Itoa(ingested.Records)},
		{"Duplicate records", strconv.Itoa(ingested.Duplicates)},
		{"Already on disk", strconv.Itoa(report.Skipped)},
		{"Total requests", strconv.Itoa(report.TotalRequests)},
		{"Succeeded", strconv.Itoa(report.Succeeded)},
		{"Failed requests", strconv.Itoa(report.Failed)},
		{"Rate limited", strconv.Itoa(report.RateLimited)},
		{"Abandoned", strconv.Itoa(report.Abandoned)},
		{"Saved", progress.FormatBytes(report.BytesSaved)},
		{"Time downloading", progress.FormatDuration(report.Downloading)},
		{"Time saving", progress.FormatDuration(report.Saving)},
		{"Elapsed", progress.FormatDuration(report.Elapsed)},
	})

	for _, f := range report.Failures {
		printer.Print(progress.Event{
			Message: fmt.Sprintf("Abandoned %s: %v", f.Task.Key(), f.Err),
			Level:   progress.LevelError,
		})
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nDownload cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during download: %v\n", err)
		os.Exit(1)
	}
}
