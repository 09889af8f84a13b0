package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/lognorm/internal/aggregator"
	"github.com/atikulmunna/lognorm/internal/config"
	"github.com/atikulmunna/lognorm/internal/hub"
	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/model"
	"github.com/atikulmunna/lognorm/internal/output"
	"github.com/atikulmunna/lognorm/internal/parser"
	"github.com/atikulmunna/lognorm/internal/reader"
)

var parseCmd = &cobra.Command{
	Use:   "parse [paths...]",
	Short: "Normalize log files or standard input",
	Long: `Read one or more log files (or glob patterns) to the end, or standard
input when no path or "-" is given, and print one normalized record per
logical line. Indented continuation lines are folded into the record
above them.

Examples:
  lognorm parse /var/log/postgresql/*.log
  lognorm parse "/var/log/**/*.log" --output json
  docker logs redis 2>&1 | lognorm parse --level warning,error`,
	RunE: runParse,
}

func init() {
	flags := parseCmd.Flags()
	flags.Bool("stats", false, "print a summary of levels and formats to stderr")
	flags.Bool("drop-unparsed", false, "do not print lines no format recognized")
	flags.Bool("join-continuations", true, "fold indented lines into the previous record")
	flags.Int("max-line-bytes", reader.DefaultMaxLineBytes, "maximum length of one physical line")

	cobra.CheckErr(viper.BindPFlag("stats", flags.Lookup("stats")))
	cobra.CheckErr(viper.BindPFlag("drop_unparsed", flags.Lookup("drop-unparsed")))
	cobra.CheckErr(viper.BindPFlag("reader.join_continuations", flags.Lookup("join-continuations")))
	cobra.CheckErr(viper.BindPFlag("reader.max_line_bytes", flags.Lookup("max-line-bytes")))

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rd := reader.New(
		reader.WithJoinContinuations(cfg.Reader.JoinContinuations),
		reader.WithMaxLineBytes(cfg.Reader.MaxLineBytes),
	)
	if len(args) == 0 || (len(args) == 1 && args[0] == reader.StdinName) {
		rd.AddReader(reader.StdinName, cmd.InOrStdin())
	} else {
		paths, err := reader.Expand(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no files matched the given patterns: %v", args)
		}
		logger.Debug("reading files", "count", len(paths))
		for _, p := range paths {
			rd.AddFile(p)
		}
	}

	h := hub.New(rd.Lines(), parser.Default(), hub.WithBlocking())
	entries := h.Subscribe()

	var (
		agg     *aggregator.Aggregator
		aggDone = make(chan struct{})
	)
	if cfg.Stats {
		agg = aggregator.New(h.Subscribe(), h.Dropped, nil)
		go func() {
			defer close(aggDone)
			agg.Start(ctx)
		}()
	} else {
		close(aggDone)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- rd.Start(ctx) }()
	go h.Start(ctx)

	renderer := output.New(cfg.Output, cmd.OutOrStdout())
	levelSet := cfg.LevelSet()

	for entry := range entries {
		if !shouldShow(entry, levelSet, cfg.DropUnparsed) {
			continue
		}
		if err := renderer.Render(entry); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}

	if err := <-readErr; err != nil && ctx.Err() == nil {
		return err
	}

	<-aggDone
	if agg != nil {
		return printStats(cmd, agg.Snapshot())
	}
	return nil
}

// shouldShow applies the level filter. Unparsed lines have no level, so any
// level filter hides them.
func shouldShow(entry model.LogEntry, levelSet map[string]bool, dropUnparsed bool) bool {
	if !entry.Parsed {
		return !dropUnparsed && len(levelSet) == 0
	}
	if len(levelSet) == 0 {
		return true
	}
	return levelSet[entry.Level()]
}

func printStats(cmd *cobra.Command, stats aggregator.Stats) error {
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.ErrOrStderr(), string(raw))
	return err
}
