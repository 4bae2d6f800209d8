package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bookclub/internal/api"
	"bookclub/internal/daemonctl"
	"bookclub/internal/daemonrun"
	"bookclub/internal/preflight"
)

const (
	ansiReset = "\033[0m"
	ansiBlue  = "\033[34m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var development bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bookclub daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(""),
				Development: development,
			})
		},
	}
	serveCmd.Flags().BoolVar(&development, "development", false, "Use development logging")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bookclub daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			held, err := daemonctl.LockHeld(cfg)
			if err != nil {
				return err
			}
			if held {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := daemonctl.Launch(exe, ctx.configPath()); err != nil {
				return err
			}
			if _, err := daemonctl.WaitForStatus(cmd.Context(), daemonctl.NewClient(cfg), 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bookclub daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and group status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			status, err := daemonctl.NewClient(cfg).Status(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				status, err = nil, nil
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if status == nil {
					status = &api.DaemonStatus{}
				}
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			renderChecks(out, checks, colorize)
			fmt.Fprintln(out)
			if status == nil {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			renderDaemonStatus(out, status, colorize)
			return nil
		},
	}

	return []*cobra.Command{serveCmd, startCmd, stopCmd, statusCmd}
}

func renderChecks(out io.Writer, checks []preflight.Result, colorize bool) {
	for _, line := range renderSectionHeader("System Checks", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range checks {
		label, color := "OK", ansiGreen
		if !check.Passed {
			label, color = "FAIL", ansiRed
		}
		line := fmt.Sprintf("  %-16s [%s] %s", check.Name+":", label, check.Detail)
		if colorize {
			line = color + line + ansiReset
		}
		fmt.Fprintln(out, line)
	}
}

func renderDaemonStatus(out io.Writer, status *api.DaemonStatus, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	running := "stopped"
	color := ansiRed
	if status.Running {
		running = "running"
		color = ansiGreen
	}
	if colorize {
		running = color + running + ansiReset
	}
	printFields(out, [][2]string{
		{"State", running},
		{"PID", strconv.Itoa(status.PID)},
		{"Bind", status.Bind},
		{"Database", status.DatabasePath},
		{"Lock", status.LockFilePath},
		{"Started", status.StartedAt},
	})

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Groups", colorize) {
		fmt.Fprintln(out, line)
	}
	names := make([]string, 0, len(status.Groups))
	for name := range status.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(status.Groups[name])})
	}
	printTable(out, "No groups yet", []string{"Status", "Count"}, rows, alignLeft, alignRight)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + title + " =="
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
