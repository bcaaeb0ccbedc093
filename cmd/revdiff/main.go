// cmd/revdiff/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"revdiff/internal/config"
	"revdiff/internal/diff"
	"revdiff/internal/errors"
	"revdiff/internal/history"
	"revdiff/internal/logging"
	"revdiff/internal/snapshot"
	"revdiff/internal/storage"
)

// app carries what a command needs, opened lazily
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	engine  *diff.Engine
	db      *badger.DB
	history *history.History
}

type rootFlags struct {
	configPath  string
	granularity string
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("loading config: %v", err), nil)
	}
	if flags.granularity != "" {
		cfg.Engine.Granularity = flags.granularity
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, errors.ValidationError(err.Error(), nil)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		engine: diff.NewEngine(opts),
	}, nil
}

// openHistory opens the version store configured for this run
func (a *app) openHistory() (*history.History, error) {
	if a.history != nil {
		return a.history, nil
	}

	db, err := storage.Open(a.cfg.Store.Path, a.cfg.Store.InMemory)
	if err != nil {
		return nil, errors.Internal("opening store", err)
	}

	snaps, err := snapshot.New(db, snapshot.Options{
		CacheSize: a.cfg.History.CacheSize,
		Compression: snapshot.CompressionOptions{
			MinSize: a.cfg.Compression.MinSize,
			Level:   a.cfg.Compression.Level,
		},
	}, a.logger)
	if err != nil {
		db.Close()
		return nil, errors.Internal("opening snapshots", err)
	}

	h, err := history.New(db, snaps, a.engine, history.Options{
		KeyframeInterval: a.cfg.History.KeyframeInterval,
		CacheSize:        a.cfg.History.CacheSize,
	}, a.logger)
	if err != nil {
		db.Close()
		return nil, errors.Internal("opening history", err)
	}

	a.db = db
	a.history = h
	return h, nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// cli holds the app opened by the root command for its subcommands
type cli struct {
	app *app
}

func (c *cli) close() {
	if c.app != nil {
		c.app.close()
		c.app = nil
	}
}

func newRootCmd(c *cli) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "revdiff",
		Short: "revdiff diffs, stores and reviews document versions",
		Long: `revdiff computes compact deltas between document versions, re-applies
them to drifted text and renders changes for review. It keeps a local version
history per document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c.app, err = newApp(flags)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default config/config.$REVDIFF_ENV.json)")
	rootCmd.PersistentFlags().StringVarP(&flags.granularity, "granularity", "g", "", "diff granularity: char, word or line")

	appFn := func() *app { return c.app }
	rootCmd.AddCommand(engineCommands(appFn)...)
	rootCmd.AddCommand(historyCommands(appFn)...)
	return rootCmd
}

// run executes one command line and releases the store afterwards
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{}
	defer c.close()

	rootCmd := newRootCmd(c)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

func engineCommands(a func() *app) []*cobra.Command {
	var diffCmd = &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Show the changes between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldText, newText, err := readPair(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			ops := a().engine.Compute(oldText, newText)
			printColoredOps(cmd.OutOrStdout(), ops)
			printStats(cmd.OutOrStdout(), diff.ComputeStats(ops))
			return nil
		},
	}

	var deltaCmd = &cobra.Command{
		Use:   "delta OLD NEW",
		Short: "Print the delta turning OLD into NEW",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldText, newText, err := readPair(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			e := a().engine
			fmt.Fprint(cmd.OutOrStdout(), e.Encode(e.Compute(oldText, newText)))
			return nil
		},
	}

	var applyCmd = &cobra.Command{
		Use:   "apply BASE DELTA",
		Short: "Apply a delta to a file, tolerating drift",
		Long: `Applies every patch of DELTA to BASE and prints the result. Patches whose
context can no longer be found are skipped and reported; the best-effort text
is still printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, delta, err := readPair(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			res, err := a().engine.ApplyDelta(base, diff.Delta(delta))
			var patchErr *diff.PatchApplicationError
			switch {
			case errors.As(err, &patchErr):
				fmt.Fprint(cmd.OutOrStdout(), res.Text)
				warn := color.New(color.FgYellow)
				for _, i := range patchErr.Failed {
					warn.Fprintf(cmd.ErrOrStderr(), "patch %d of %d did not apply\n", i+1, patchErr.Total)
				}
				return errors.ValidationError("delta applied partially", patchErr.Failed)
			case err != nil:
				return errors.ValidationError(err.Error(), nil)
			}

			fmt.Fprint(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}

	var htmlCmd = &cobra.Command{
		Use:   "html OLD NEW",
		Short: "Render the changes between two files as HTML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldText, newText, err := readPair(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a().engine.RenderHTML(oldText, newText))
			return nil
		},
	}

	return []*cobra.Command{diffCmd, deltaCmd, applyCmd, htmlCmd}
}

// readPair reads two files. "-" reads standard input.
func readPair(cmd *cobra.Command, first, second string) (string, string, error) {
	a, err := readInput(cmd, first)
	if err != nil {
		return "", "", err
	}
	b, err := readInput(cmd, second)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return "", errors.NotFound(fmt.Sprintf("file does not exist: %s", path))
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// printColoredOps prints text inline with deletions in red and insertions
// in green
func printColoredOps(w io.Writer, ops []diff.Operation) {
	added := color.New(color.FgGreen, color.Underline)
	removed := color.New(color.FgRed, color.CrossedOut)

	for _, op := range ops {
		switch op.Op {
		case diff.Insert:
			added.Fprint(w, op.Text)
		case diff.Delete:
			removed.Fprint(w, op.Text)
		default:
			fmt.Fprint(w, op.Text)
		}
	}
	if n := len(ops); n > 0 && !strings.HasSuffix(ops[n-1].Text, "\n") {
		fmt.Fprintln(w)
	}
}

// printColoredDiff prints delta patch text with hunk headers highlighted
func printColoredDiff(w io.Writer, patchText string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(patchText, "\n"), "\n") {
		switch {
		case line == "":
			fmt.Fprintln(w)
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func printStats(w io.Writer, s diff.Stats) {
	color.New(color.Faint).Fprintf(w, "%d insertions(+), %d deletions(-)\n", s.Additions, s.Deletions)
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(errors.ExitCode(err))
	}
}
