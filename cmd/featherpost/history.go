package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/featherpost/history"
)

func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", getEnv("FEATHERPOST_CONFIG", ""), "Path to config file (FEATHERPOST_CONFIG)")
	limit := fs.Int("limit", 20, "Maximum number of posts to display (0 for all)")
	format := fs.String("format", "table", "Output format: table, json, compact")
	fs.Parse(args)

	cfg, logger := loadConfig(*configPath)

	store, err := history.NewStore(cfg.Files.History)
	if err != nil {
		fatal(logger, "Failed to open history", err)
	}
	defer store.Close()

	posts, err := store.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list posts: %v\n", err)
		os.Exit(1)
	}

	total, err := store.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to count posts: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		printJSON(map[string]any{
			"posts": posts,
			"total": total,
		})
	case "compact":
		printHistoryCompact(posts)
	case "table":
		printHistoryTable(posts, total)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}
