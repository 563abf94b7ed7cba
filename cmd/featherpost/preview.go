package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pevans/featherpost/history"
	"github.com/pevans/featherpost/rules"
	"github.com/pevans/featherpost/selector"
	"github.com/pevans/featherpost/status"
	"github.com/pevans/featherpost/submission"
)

// preview is what the preview command prints.
type preview struct {
	Record    submission.Record `json:"record"`
	Accepted  bool              `json:"accepted"`
	Decision  string            `json:"decision"`
	Status    string            `json:"status"`
	Published bool              `json:"published"`
}

// handlePreview scrapes one submission and shows how it would be posted. It
// never publishes and never touches the ledger.
func handlePreview(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	configPath := fs.String("config", getEnv("FEATHERPOST_CONFIG", ""), "Path to config file (FEATHERPOST_CONFIG)")
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: featherpost preview [-config path] [-format table|json] <submission-id>")
		os.Exit(1)
	}

	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id < 1 {
		fmt.Fprintf(os.Stderr, "Error: invalid submission ID: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	cfg, logger := loadConfig(*configPath)
	ctx := context.Background()

	client := newSiteClient(cfg, logger)
	if err := client.Login(ctx); err != nil {
		fatal(logger, "Failed to log in", err)
	}

	page, err := client.Fetch(ctx, client.ItemURL(id))
	if err != nil {
		fatal(logger, "Failed to fetch submission", err)
	}

	if err := selector.Validate(page); err != nil {
		if errors.Is(err, selector.ErrInvalidCandidate) {
			fmt.Fprintf(os.Stderr, "Submission %d can't be posted: %v\n", id, err)
			os.Exit(1)
		}
		fatal(logger, "Failed to validate submission", err)
	}

	filter, err := rules.LoadFilter(cfg.Files.Block, cfg.Files.Require)
	if err != nil {
		fatal(logger, "Failed to load rules", err)
	}

	rec := submission.ScrapeCandidate(id, page)
	decision := filter.Evaluate(rec)

	store, err := history.NewStore(cfg.Files.History)
	if err != nil {
		fatal(logger, "Failed to open history", err)
	}
	defer store.Close()

	published, err := store.Published(rec.ID)
	if err != nil {
		fatal(logger, "Failed to read history", err)
	}

	result := preview{
		Record:    rec,
		Accepted:  decision.Accepted,
		Decision:  decision.String(),
		Status:    status.Format(rec),
		Published: published,
	}

	switch *format {
	case "json":
		printJSON(result)
	case "table":
		printPreview(result)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}
