package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	marxistsearch "github.com/domwxyz/marxist-search"
	"github.com/domwxyz/marxist-search/config"
	"github.com/domwxyz/marxist-search/search"
)

func main() {
	app := &cli.App{
		Name:  "marxist-search",
		Usage: "Semantic search over the article archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Rebuild the vector index from scratch",
				Action: buildCommand,
			},
			{
				Name:   "update",
				Usage:  "Index new and stale articles incrementally",
				Action: updateCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a query against the index",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Results per page",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Results to skip",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Restrict to one source feed",
					},
					&cli.StringFlag{
						Name:  "author",
						Usage: "Restrict to one author",
					},
					&cli.StringFlag{
						Name:  "date-range",
						Usage: "Date preset (past_week, past_month, past_3_months, past_year, a decade like 2010s, or custom)",
					},
					&cli.StringFlag{
						Name:  "start-date",
						Usage: "Start date for --date-range custom (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "end-date",
						Usage: "End date for --date-range custom (YYYY-MM-DD)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show store, index, and feed statistics",
				Action: statsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openArchive(c *cli.Context) (*marxistsearch.Archive, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	archive, err := marxistsearch.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive, nil
}

func buildCommand(c *cli.Context) error {
	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	svc, err := archive.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer svc.Close()

	report, err := svc.Build(context.Background())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	printReport(report.Total, report.Indexed, report.Failed, report.Documents)
	return nil
}

func updateCommand(c *cli.Context) error {
	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	svc, err := archive.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer svc.Close()

	report, err := svc.Update(context.Background())
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	printReport(report.Total, report.Indexed, report.Failed, report.Documents)
	return nil
}

func printReport(total, indexed, failed, documents int) {
	fmt.Fprintf(os.Stderr, "Articles:  %d\n", total)
	fmt.Fprintf(os.Stderr, "Indexed:   %d\n", indexed)
	fmt.Fprintf(os.Stderr, "Failed:    %d\n", failed)
	fmt.Fprintf(os.Stderr, "Documents: %d\n", documents)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	searcher, err := archive.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	defer searcher.Close()

	spec := search.FilterSpec{
		Source:    c.String("source"),
		Author:    c.String("author"),
		DateRange: c.String("date-range"),
		StartDate: c.String("start-date"),
		EndDate:   c.String("end-date"),
	}

	resp, err := searcher.Search(context.Background(), query, spec, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("json") {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%d results (%d ms)\n\n", resp.Total, resp.QueryTimeMs)
	for i, r := range resp.Results {
		fmt.Printf("%2d. %s  [%.3f]\n", c.Int("offset")+i+1, r.Title, r.Score)
		fmt.Printf("    %s", r.Source)
		if r.Author != "" {
			fmt.Printf(" | %s", r.Author)
		}
		if !r.PublishedDate.IsZero() {
			fmt.Printf(" | %s", r.PublishedDate.Format("2006-01-02"))
		}
		fmt.Println()
		if r.Excerpt != "" {
			fmt.Printf("    %s\n", r.Excerpt)
		}
		fmt.Printf("    %s\n\n", r.URL)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	archive, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	searcher, err := archive.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	defer searcher.Close()

	stats, err := searcher.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("Articles:        %d\n", stats.Store.TotalArticles)
	fmt.Printf("Indexed:         %d\n", stats.Store.IndexedArticles)
	fmt.Printf("Chunks:          %d\n", stats.Store.TotalChunks)
	fmt.Printf("Sources:         %d\n", stats.Store.SourceCount)
	fmt.Printf("Index documents: %d\n", stats.IndexDocuments)
	if !stats.Store.EarliestArticle.IsZero() {
		fmt.Printf("Coverage:        %s to %s\n",
			stats.Store.EarliestArticle.Format("2006-01-02"),
			stats.Store.LatestArticle.Format("2006-01-02"))
	}

	sources, err := searcher.Sources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range sources {
			fmt.Printf("  %-30s %d\n", s.Name, s.ArticleCount)
		}
	}

	health, err := searcher.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to read feed health: %w", err)
	}
	if len(health) > 0 {
		fmt.Println("\nFeeds:")
		for _, h := range health {
			fmt.Printf("  %-30s %-8s failures=%d\n", h.Name, h.Status, h.ConsecutiveFailures)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
