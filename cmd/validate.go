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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/state"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without starting the daemon",
	Long: `Loads defaults, the JSON configuration file and PROVISIOND_* environment
variables the way the daemon does, and reports any problem.`,
	Run: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	if err := executeValidate(cmd.OutOrStdout()); err != nil {
		exitWithError()
	}
}

// executeValidate loads the configuration and prints the outcome.
func executeValidate(w io.Writer) error {
	path := state.ConfigPath()
	fmt.Fprintf(w, "Validating configuration in %s...\n\n", state.GetConfigDir())

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(w, "⊘ %s: not found (using defaults)\n", path)
	}

	cfg, err := state.LoadConfig()
	if err != nil {
		fmt.Fprintf(w, "❌ %v\n\n", err)
		fmt.Fprintln(w, "❌ Validation failed - please fix the errors above")
		return errValidationFailed
	}

	fmt.Fprintf(w, "✓ configuration: valid\n\n")
	fmt.Fprintf(w, "  Uplink:      %s\n", cfg.UplinkInterface)
	fmt.Fprintf(w, "  Setup AP:    %s on %s (%s)\n", cfg.SetupSSID, cfg.APInterface, cfg.APIPv4CIDR)
	fmt.Fprintf(w, "  Check URL:   %s every %s\n", cfg.CheckURL, cfg.CheckInterval.Std())
	fmt.Fprintf(w, "  Online:      after %d consecutive successes\n", cfg.RequiredSuccesses)
	fmt.Fprintf(w, "  Firewall:    %s\n", cfg.FirewallBackend)
	return nil
}
