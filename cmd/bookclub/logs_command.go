package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookclub/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filters []string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := logs.CurrentPath(cfg.Paths.LogDir)

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			emit := func(line string) {
				if logs.Match(line, filters) {
					fmt.Fprintln(out, line)
				}
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				if len(tail) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No log output at %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringSliceVar(&filters, "grep", nil, "Only show lines containing every term")
	return cmd
}
