// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/daemon"
	"github.com/we-are-mono/provisiond/daemon/logger"
)

var (
	logsFollow    bool
	logsLines     int
	logsSince     string
	logsComponent string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show provisiond logs",
	Long:  `Display daemon logs using journalctl (systemd) or tail (non-systemd).`,
	Run:   runLogs,
}

var logsWatchCmd = &cobra.Command{
	Use:   "watch [level]",
	Short: "Stream logs from the running daemon",
	Long:  `Stream log entries over the control socket. Optionally set a minimum level (debug, info, warn, error).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogsWatch,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsWatchCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output in real-time")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since time (e.g., '1 hour ago', '2024-01-01')")

	logsWatchCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (monitor, provisioner, server, ...)")
}

func runLogs(cmd *cobra.Command, args []string) {
	var argv []string
	if _, err := exec.LookPath("journalctl"); err == nil {
		argv = journalctlArgs(logsFollow, logsLines, logsSince)
	} else {
		if _, err := os.Stat(logger.DefaultLogPath); os.IsNotExist(err) {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] Log file not found: %s", logger.DefaultLogPath))
			exitWithError()
			return
		}
		if logsSince != "" {
			cmd.PrintErrln("[WARN] --since flag is not supported without journalctl, ignoring")
		}
		argv = tailArgs(logsFollow, logsLines, logger.DefaultLogPath)
	}

	execCmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // fixed binary, validated flags
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin

	if err := execCmd.Run(); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] Failed to run %s: %v", argv[0], err))
		exitWithError()
	}
}

func journalctlArgs(follow bool, lines int, since string) []string {
	argv := []string{"journalctl", "-t", logger.JournalTag}
	if follow {
		argv = append(argv, "-f")
	}
	if lines > 0 && !follow {
		argv = append(argv, "-n", fmt.Sprintf("%d", lines))
	}
	if since != "" {
		argv = append(argv, "--since", since)
	}
	if !follow {
		argv = append(argv, "--no-pager")
	}
	return argv
}

func tailArgs(follow bool, lines int, path string) []string {
	argv := []string{"tail"}
	if follow {
		argv = append(argv, "-f")
	}
	if lines > 0 {
		argv = append(argv, "-n", fmt.Sprintf("%d", lines))
	}
	return append(argv, path)
}

func runLogsWatch(cmd *cobra.Command, args []string) {
	filter := &daemon.LogFilter{Component: logsComponent}
	if len(args) > 0 {
		filter.Level = args[0]
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- executeLogsWatch(cmd.OutOrStdout(), defaultClient, filter)
	}()

	select {
	case err := <-done:
		if err != nil {
			cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
			exitWithError()
		}
	case <-sigChan:
		fmt.Fprintln(cmd.OutOrStdout(), "\nStopping log stream...")
	}
}

// executeLogsWatch prints streamed entries until the daemon closes the stream.
func executeLogsWatch(w io.Writer, client ClientInterface, filter *daemon.LogFilter) error {
	return client.StreamLogs(filter, func(line []byte) error {
		var entry logger.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("failed to parse log entry: %w", err)
		}
		fmt.Fprintln(w, entry.ToText())
		return nil
	})
}
