// cmd/revdiff/history.go
package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"revdiff/internal/errors"
	"revdiff/internal/history"
	"revdiff/internal/watch"
)

func historyCommands(a func() *app) []*cobra.Command {
	var saveCmd = &cobra.Command{
		Use:   "save DOC FILE",
		Short: "Save FILE as the next version of DOC",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a().openHistory()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			author, _ := cmd.Flags().GetString("author")
			message, _ := cmd.Flags().GetString("message")

			v, err := h.Save(args[0], text, author, message)
			if errors.Is(err, history.ErrUnchanged) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged since version %d\n", args[0], v.Number)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %s version %d ", args[0], v.Number)
			printStats(cmd.OutOrStdout(), v.Stats)
			return nil
		},
	}
	saveCmd.Flags().StringP("author", "a", "", "Version author")
	saveCmd.Flags().StringP("message", "m", "", "Version message")

	var logCmd = &cobra.Command{
		Use:   "log DOC",
		Short: "List the versions of DOC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a().openHistory()
			if err != nil {
				return err
			}
			versions, err := h.List(args[0])
			if err != nil {
				return err
			}

			number := color.New(color.FgYellow)
			added := color.New(color.FgGreen)
			removed := color.New(color.FgRed)
			w := cmd.OutOrStdout()
			for i := len(versions) - 1; i >= 0; i-- {
				v := versions[i]
				number.Fprintf(w, "version %d", v.Number)
				if v.IsKeyframe() {
					fmt.Fprint(w, " (keyframe)")
				}
				fmt.Fprintf(w, " %s\n", v.ID)
				if v.Author != "" {
					fmt.Fprintf(w, "Author: %s\n", v.Author)
				}
				fmt.Fprintf(w, "Date:   %s\n", v.CreatedAt.Local().Format(time.RFC1123))
				added.Fprintf(w, "+%d ", v.Stats.Additions)
				removed.Fprintf(w, "-%d", v.Stats.Deletions)
				fmt.Fprintf(w, "  delta %d bytes\n", len(v.Delta))
				if v.Message != "" {
					fmt.Fprintf(w, "\n    %s\n", v.Message)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show DOC N",
		Short: "Print the full text of version N of DOC",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a().openHistory()
			if err != nil {
				return err
			}
			n, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			text, err := h.Text(args[0], n)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	var compareCmd = &cobra.Command{
		Use:   "compare DOC A B",
		Short: "Show the changes of DOC between versions A and B",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a().openHistory()
			if err != nil {
				return err
			}
			from, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			to, err := parseVersion(args[2])
			if err != nil {
				return err
			}

			if asHTML, _ := cmd.Flags().GetBool("html"); asHTML {
				html, err := h.Compare(args[0], from, to)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), html)
				return nil
			}

			ops, err := h.Diff(args[0], from, to)
			if err != nil {
				return err
			}
			if asPatch, _ := cmd.Flags().GetBool("patch"); asPatch {
				printColoredDiff(cmd.OutOrStdout(), string(a().engine.Encode(ops)))
				return nil
			}
			printColoredOps(cmd.OutOrStdout(), ops)
			return nil
		},
	}
	compareCmd.Flags().Bool("html", false, "Render as HTML")
	compareCmd.Flags().Bool("patch", false, "Print the delta hunks")

	var watchCmd = &cobra.Command{
		Use:   "watch DOC FILE",
		Short: "Save a new version of DOC whenever FILE changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a().openHistory()
			if err != nil {
				return err
			}
			debounce, _ := cmd.Flags().GetDuration("debounce")
			author, _ := cmd.Flags().GetString("author")

			w, err := watch.New(h, args[0], args[1], watch.Options{
				Debounce: debounce,
				Author:   author,
				OnSave: func(v *history.Version) {
					fmt.Fprintf(cmd.OutOrStdout(), "saved %s version %d ", v.DocumentID, v.Number)
					printStats(cmd.OutOrStdout(), v.Stats)
				},
			}, a().logger.WithDocument(args[0]))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s, press Ctrl+C to stop\n", args[1])
			return w.Run(ctx)
		},
	}
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before saving")
	watchCmd.Flags().StringP("author", "a", "", "Version author")

	return []*cobra.Command{saveCmd, logCmd, showCmd, compareCmd, watchCmd}
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.ValidationError(fmt.Sprintf("invalid version %q", s), nil)
	}
	return n, nil
}
