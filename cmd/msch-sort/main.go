package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/handiism/msch-harvester/internal/config"
	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/msch"
	"github.com/handiism/msch-harvester/internal/organize"
	"github.com/handiism/msch-harvester/internal/progress"
)

func main() {
	// Command line flags
	var (
		configFlag  = flag.String("config", "", "Path to YAML config file")
		envFlag     = flag.String("env", ".env", "Path to .env file")
		rootFlag    = flag.String("root", "", "Schematics directory (overrides config)")
		workersFlag = flag.Int("workers", 0, "Files classified in parallel (overrides config)")
		verboseFlag = flag.Bool("verbose", false, "Show verbose output")
	)

	flag.Parse()

	settings, err := config.LoadWithEnv(*configFlag, *envFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *rootFlag != "" {
		settings.SchematicsPath = *rootFlag
	}
	if *workersFlag > 0 {
		settings.ClassifyWorkers = *workersFlag
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

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := progress.NewPrinter(os.Stdout, *verboseFlag)
	printer.Title("msch harvester: sort by version")
	fmt.Println()

	sorter := organize.NewSorter(ioutils.NewOsStore(), organize.Options{
		Root:    settings.SchematicsPath,
		Workers: settings.ClassifyWorkers,
	}, printer.Func(), logger)

	report, err := sorter.Run(ctx)

	categories := make([]string, 0, len(report.Categories))
	for _, c := range report.Categories {
		categories = append(categories, c.String())
	}

	rows := [][2]string{
		{"Processed categories", strings.Join(categories, ", ")},
		{"Moved schematics", strconv.Itoa(report.Moved)},
	}
	for _, f := range msch.Families {
		rows = append(rows, [2]string{f.String(), strconv.Itoa(report.Families[f])})
	}
	rows = append(rows,
		[2]string{"Rejected", strconv.Itoa(len(report.Rejected))},
		[2]string{"Time reading", progress.FormatDuration(report.Reading)},
		[2]string{"Time classifying", progress.FormatDuration(report.Classifying)},
		[2]string{"Time moving", progress.FormatDuration(report.Moving)},
		[2]string{"Elapsed", progress.FormatDuration(report.Elapsed)},
	)

	fmt.Println()
	printer.Summary("Summary", rows)

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nSort cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during sort: %v\n", err)
		os.Exit(1)
	}
}
