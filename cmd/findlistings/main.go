// Command findlistings runs one listing search from the command line and
// prints the resulting batch as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/app"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/config"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		planner  string
		provider string
		verbose  bool
		pretty   bool
		lang     string
	)

	flagSet := pflag.NewFlagSet("findlistings", pflag.ContinueOnError)
	flagSet.StringVar(&planner, "planner", "", "planner to use: gemini or scripted (default: from PLANNER_PROVIDER)")
	flagSet.StringVar(&provider, "search", "", "search backend: brave or duckduckgo (default: from SEARCH_PROVIDER)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log run progress to stderr")
	flagSet.BoolVar(&pretty, "pretty", true, "indent JSON output")
	flagSet.StringVar(&lang, "lang", "fr", "language of the blocked-input message (fr or en)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	query := strings.TrimSpace(strings.Join(flagSet.Args(), " "))
	if query == "" {
		printHelp(flagSet)
		return fmt.Errorf("a search query is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if planner != "" {
		cfg.Planner.Provider = planner
	}
	if provider != "" {
		cfg.Search.Provider = provider
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := app.NewWorkflow(cfg, nil, nil, logger).Execute(ctx, query)
	if err != nil {
		return err
	}

	var out any
	if res.Blocked {
		out = map[string]any{
			"blocked": true,
			"message": guardrail.BlockedMessage(lang),
			"results": res.Guardrail.Triggered(),
		}
	} else {
		out = map[string]any{
			"state":    res.State.String(),
			"listings": res.Listings,
			"turns":    res.Turns,
			"usage":    res.Usage,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `findlistings searches Québec listing sites for properties matching a query.

Usage:
  findlistings [flags] <query>

Examples:
  findlistings "maison 3 chambres Lévis"
  findlistings --search duckduckgo --planner scripted "condo Montréal moins de 400 000 $"

Flags:
`)
	flagSet.PrintDefaults()
}
