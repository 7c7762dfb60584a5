package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/RusaUB/nexintel/internal/agent"
	"github.com/RusaUB/nexintel/internal/config"
	"github.com/RusaUB/nexintel/internal/factor"
	"github.com/RusaUB/nexintel/internal/feed"
	"github.com/RusaUB/nexintel/internal/llm"
	"github.com/RusaUB/nexintel/internal/logging"
	"github.com/RusaUB/nexintel/internal/mcp"
	"github.com/RusaUB/nexintel/internal/observe"
	"github.com/RusaUB/nexintel/internal/store"
	"github.com/RusaUB/nexintel/internal/tags"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runPipeline(os.Args[2:])
	case "factors":
		err = runFactors(os.Args[2:])
	case "observations":
		err = runObservations(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("nexintel %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, configures logging and opens the store. Returned
// cleanup closes both.
func setup(configPath string) (*config.Config, *slog.Logger, store.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	st, err := store.New(store.Config{DBPath: config.ExpandPath(cfg.Store.DBPath)})
	if err != nil {
		closeLog()
		return nil, nil, nil, nil, err
	}
	cleanup := func() {
		st.Close()
		closeLog()
	}
	return cfg, logger, st, cleanup, nil
}

func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	dateStr := fs.String("date", "", "pipeline date YYYY-MM-DD (default: today UTC)")
	dryRun := fs.Bool("dry-run", false, "print factors without persisting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, st, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if *dateStr != "" {
		date, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
	}
	start := date
	end := date.Add(24 * time.Hour)

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return err
	}

	var est factor.Estimator = factor.RoughEstimator{}
	if cfg.TokenizerFile != "" {
		te, err := factor.NewTokenizerEstimator(config.ExpandPath(cfg.TokenizerFile))
		if err != nil {
			return fmt.Errorf("loading tokenizer: %w", err)
		}
		est = te
	}

	recorder := observe.NewRecorder()
	agentCfg := cfg.Agents.NewsDataAgent
	normalizer := tags.New(tags.Config{
		Synonyms:  agentCfg.Tags.Synonyms,
		Canonical: agentCfg.Tags.Canonical,
		MaxTags:   agentCfg.Tags.MaxPerObservation,
		Reporter:  recorder,
		Logger:    logger,
	})

	ag, err := agent.New(provider, agent.Config{
		Name:            agentCfg.Name,
		Preference:      agentCfg.Preference,
		MaxObservations: agentCfg.MaxObs,
		MaxTokens:       agentCfg.MaxTokensFactor,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Temperature:     cfg.LLM.Temperature,
		Estimator:       est,
		Normalizer:      normalizer,
		Recorder:        recorder,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := source.Connect(ctx); err != nil {
		return fmt.Errorf("connecting source: %w", err)
	}
	defer source.Close()

	runID := ""
	if !*dryRun {
		runID, err = st.BeginRun(ctx, ag.Name(), start, end)
		if err != nil {
			return err
		}
	}

	events, err := source.Fetch(ctx, start, end)
	if err != nil {
		if runID != "" {
			st.FinishRun(ctx, runID, 0, 0, err)
		}
		return fmt.Errorf("fetching events: %w", err)
	}
	logger.Info("events fetched", "count", len(events))

	composite := ag.Run(ctx, date, events)

	split := cfg.Agents.NewsDataAgent.SplitByTags
	splitCfg := factor.DefaultSplitConfig()
	splitCfg.Enabled = split.SplitEnabled()
	if len(split.Priority) > 0 {
		splitCfg.Priority = split.Priority
	}
	if split.FallbackTag != "" {
		splitCfg.FallbackTag = split.FallbackTag
	}
	splitCfg.Limits = factor.Limits{
		MaxObservations: split.PerFactorLimits.MaxObs,
		MaxTokens:       split.PerFactorLimits.MaxTokensFactor,
	}
	factors := factor.NewSplitter(splitCfg, est, logger).Split(composite)

	for _, f := range factors {
		fmt.Printf("%s  %-32s obs=%d tokens=%d\n",
			f.Date.Format("2006-01-02"), f.AgentName, len(f.Observations), f.LengthTokens)
		for _, o := range f.Observations {
			fmt.Printf("  [%+d] %-6s %s %v\n", o.Rating, orNA(o.Asset), o.Text, o.Tags)
		}
	}

	summary := recorder.Summary()
	if len(summary.NonCanonicalTags) > 0 {
		logger.Info("non-canonical tags seen", "tags", summary.NonCanonicalTags)
	}
	if len(summary.UnknownSymbols) > 0 {
		logger.Info("unknown symbols seen", "symbols", summary.UnknownSymbols)
	}

	if *dryRun {
		return nil
	}
	if err := st.SaveFactors(ctx, runID, factors); err != nil {
		st.FinishRun(ctx, runID, len(events), 0, err)
		return fmt.Errorf("persisting factors: %w", err)
	}
	return st.FinishRun(ctx, runID, len(events), len(factors), nil)
}

// newSource builds the configured feed connector.
func newSource(cfg *config.Config, logger *slog.Logger) (feed.Source, error) {
	cd := cfg.Sources.CoinDesk
	return feed.NewCoinDeskSource(feed.CoinDeskConfig{
		BaseURL:           cd.BaseURL,
		APIKey:            os.Getenv("COINDESK_API_KEY"),
		Timeout:           time.Duration(cd.TimeoutSecs) * time.Second,
		CacheTTL:          time.Duration(cd.CacheTTLHours) * time.Hour,
		Lang:              cd.Lang,
		Limit:             cd.Limit,
		Categories:        cd.Categories,
		ExcludeCategories: cd.ExcludeCategories,
		SourceIDs:         cd.SourceIDs,
		Logger:            logger,
	})
}

func runFactors(args []string) error {
	fs := flag.NewFlagSet("factors", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	agentName := fs.String("agent", "", "filter by agent name")
	date := fs.String("date", "", "filter by date YYYY-MM-DD")
	limit := fs.Int("limit", 20, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _, st, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := st.ListFactors(context.Background(), store.ListOpts{
		AgentName: *agentName,
		Date:      *date,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No factors stored.")
		return nil
	}
	for _, r := range rows {
		fmt.Printf("%6d  %s  %-32s obs=%-3d tokens=%-5d run=%s\n",
			r.ID, r.Date, r.AgentName, r.ObsCount, r.LengthTokens, r.RunID)
	}
	return nil
}

func runObservations(args []string) error {
	fs := flag.NewFlagSet("observations", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	factorID := fs.Int64("factor", 0, "factor ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *factorID == 0 {
		return fmt.Errorf("--factor is required")
	}

	_, _, st, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	obs, err := st.ListObservations(context.Background(), *factorID)
	if err != nil {
		return err
	}
	for _, o := range obs {
		fmt.Printf("  [%+d] %-6s %s (%s)\n", o.Rating, orNA(o.Asset), o.Text, o.Tags)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _, st, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Runs:         %d\n", stats.RunCount)
	fmt.Printf("Factors:      %d\n", stats.FactorCount)
	fmt.Printf("Observations: %d\n", stats.ObservationCount)
	fmt.Printf("DB size:      %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _, st, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := mcp.NewServer(mcp.ServerConfig{Store: st, Version: version})
	return mcp.ServeStdio(srv)
}

func orNA(asset string) string {
	if asset == "" {
		return "NA"
	}
	return asset
}

func printUsage() {
	fmt.Printf(`nexintel %s — news-to-trading-signal observation pipeline

Usage:
  nexintel <command> [arguments]

Commands:
  run             Fetch the day's news and extract textual factors
  factors         List persisted factors
  observations    Show the observations of one factor
  stats           Show store statistics
  mcp             Serve the store over MCP stdio
  version         Print version

Run Flags:
  --config <path>   Config file (default ~/.nexintel/config.yaml or $NEXINTEL_CONFIG)
  --date <date>     Pipeline date YYYY-MM-DD (default: today UTC)
  --dry-run         Print factors without persisting

Environment:
  DEEPSEEK_API_KEY / OPENROUTER_API_KEY   Model provider credentials
  COINDESK_API_KEY                        Optional news API token
  NEXINTEL_CONFIG, NEXINTEL_DB            Config and database overrides
`, version)
}
