package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pevans/featherpost/config"
	"github.com/pevans/featherpost/logging"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Variables from .env are visible to every flag default below.
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "run":
		handleRun(os.Args[2:])
	case "preview":
		handlePreview(os.Args[2:])
	case "history":
		handleHistory(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration, then installs the
// logger it asks for. Any failure is fatal.
func loadConfig(path string) (*config.Config, *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg, logging.Init(level)
}

func printUsage() {
	fmt.Println("featherpost - Post random Fur Affinity submissions to social media")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  featherpost <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Publish a random submission on a schedule")
	fmt.Println("  preview    Show how a submission would be posted")
	fmt.Println("  history    List published posts")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Every command accepts -config <path> (default: ~/.featherpost/config.yaml).")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  FEATHERPOST_CONFIG     Path to the config file")
	fmt.Println("  FEATHERPOST_USERNAME   Site account name")
	fmt.Println("  FEATHERPOST_PASSWORD   Site account password")
	fmt.Println("  FEATHERPOST_COOKIE_A   Site session cookie \"a\"")
	fmt.Println("  FEATHERPOST_COOKIE_B   Site session cookie \"b\"")
	fmt.Println("  FEATHERPOST_BACKEND    Publish backend: log, bluesky, twitter (default: log)")
	fmt.Println("  FEATHERPOST_LEDGER     Drafted ID ledger (default: submissions.csv)")
	fmt.Println("  FEATHERPOST_LOG_LEVEL  0/fail, 1/warn, 2/note, 3/debug (default: note)")
	fmt.Println()
	fmt.Println("A .env file in the working directory is loaded first.")
}
