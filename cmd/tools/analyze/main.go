package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/pipeline"
	"github.com/soltixdb/tagwatch/internal/sink"
	"github.com/soltixdb/tagwatch/internal/source"
)

// cliOptions holds the parsed command line
type cliOptions struct {
	configPath  string
	input       string
	tag         string
	start       string
	end         string
	aggregate   string
	granularity string
	low         *float64
	high        *float64
	export      bool
	push        bool
}

func main() {
	var opts cliOptions

	// Command line flags
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.input, "input", "", "CSV file to analyze instead of the configured source (.csv or .csv.sz)")
	flag.StringVar(&opts.tag, "tag", "", "Tag external id (defaults to the input file name)")
	flag.StringVar(&opts.start, "start", "", "Start of the time range (ISO-8601, optional)")
	flag.StringVar(&opts.end, "end", "", "End of the time range (ISO-8601, optional)")
	flag.StringVar(&opts.aggregate, "aggregate", "", "Aggregate function (average, min, max, sum, count, ...)")
	flag.StringVar(&opts.granularity, "granularity", "", "Aggregation bucket size (1m, 1h, PT15M)")
	low := flag.Float64("low", 0, "Low alarm limit (overrides config)")
	high := flag.Float64("high", 0, "High alarm limit (overrides config)")
	flag.BoolVar(&opts.export, "export", true, "Write <tag>_cleaned.csv to the export directory")
	flag.BoolVar(&opts.push, "push", false, "Push the estimated TTF series to the configured sink")

	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "low":
			opts.low = low
		case "high":
			opts.high = high
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run analyzes one tag and prints the summary to w. Every opened resource is
// released before it returns.
func run(ctx context.Context, opts cliOptions, w io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg.Logging, "analyze")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)

	pipeOpts := pipeline.OptionsFromConfig(cfg.Analysis)
	if opts.low != nil {
		pipeOpts.Thresholds.Low = *opts.low
	}
	if opts.high != nil {
		pipeOpts.Thresholds.High = *opts.high
	}
	runner, err := pipeline.NewRunner(pipeOpts, logger)
	if err != nil {
		return fmt.Errorf("invalid analysis options: %w", err)
	}

	loc := cfg.Source.GetTimezone()
	tag := opts.tag
	var retriever source.Retriever
	if opts.input != "" {
		if tag == "" {
			tag = tagFromFile(opts.input)
		}
		// The CSV source reads <dir>/<tag>.csv, so the file name must match the tag
		if tagFromFile(opts.input) != tag {
			return fmt.Errorf("input file %s does not match tag %s", opts.input, tag)
		}
		retriever = source.NewCSVRetriever(filepath.Dir(opts.input), loc, logger)
	} else {
		if tag == "" {
			return fmt.Errorf("-tag or -input is required")
		}
		retriever, err = source.New(cfg.Source, logger)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		if closer, ok := retriever.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
	}

	query := source.Query{Tag: tag, Aggregate: opts.aggregate, Granularity: opts.granularity}
	if query.Start, err = parseBound(opts.start, loc); err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if query.End, err = parseBound(opts.end, loc); err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	tags := pipeline.NewService(runner, retriever, logger)
	if opts.export {
		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		tags.WithExporter(csvio.NewExporter(cfg.Export, logger))
	}
	if opts.push {
		pusher, closeSink, err := sink.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open sink: %w", err)
		}
		defer func() { _ = closeSink() }()
		if pusher == nil {
			return fmt.Errorf("-push requires sink.type queue or sql")
		}
		tags.WithPusher(pusher)
	}

	res, err := tags.AnalyzeTag(ctx, pipeline.TagRequest{
		Query:  query,
		Export: opts.export,
		Push:   opts.push,
	})
	if err != nil {
		return err
	}

	printSummary(w, res)
	return nil
}

// tagFromFile strips the directory and the .csv or .csv.sz extension
func tagFromFile(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, csvio.SnappyExt)
	return strings.TrimSuffix(name, ".csv")
}

func parseBound(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := csvio.ParseTimestamp(value, loc)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func printSummary(w io.Writer, res *pipeline.TagResult) {
	fmt.Fprintf(w, "Tag:      %s\n", res.Tag)
	fmt.Fprintf(w, "Run:      %s (%s)\n", res.RunID, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Rows:     %d (%d missing, %d removed as outliers)\n",
		res.Table.Len(), res.Missing.Missing, res.Removed)
	for _, s := range analytics.AllStatuses() {
		fmt.Fprintf(w, "  %-11s %d\n", s, res.Counts[s])
	}
	if res.ExportPath != "" {
		fmt.Fprintf(w, "Exported: %s\n", res.ExportPath)
	}
	if res.Pushed != nil {
		fmt.Fprintf(w, "Pushed:   %d datapoints to %s (%d skipped)\n",
			res.Pushed.Written, res.Pushed.ExternalID, res.Pushed.Skipped)
	}
}
