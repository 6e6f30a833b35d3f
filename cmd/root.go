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

// Package cmd implements the provisiond CLI using cobra.
// It provides the root command structure and version management.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the application version string.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "provisiond",
	Short: "provisiond - Wi-Fi setup-mode provisioning daemon",
	Long: `provisiond brings up a temporary setup access point, lets a client
pick an upstream Wi-Fi network, and tears the access point down once the
device has reached the internet.`,
	Version: Version,
}

var socketPath string

func init() {
	rootCmd.SetVersionTemplate(versionTemplate(Version, BuildTime))
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control socket path (overrides PROVISIOND_SOCKET_PATH)")
	rootCmd.PersistentPreRunE = applySocketFlag
}

// applySocketFlag exports --socket so the client and the daemon's
// configuration loader agree on the path.
func applySocketFlag(cmd *cobra.Command, args []string) error {
	if socketPath == "" {
		return nil
	}
	return os.Setenv("PROVISIOND_SOCKET_PATH", socketPath)
}

func versionTemplate(version, buildTime string) string {
	return fmt.Sprintf("provisiond v%s (built: %s)\n", version, buildTime)
}

// Execute runs the root command and handles any errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion updates the version and build time for display in help and version output.
func SetVersion(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate(version, buildTime))
}

// exitWithError exits with code 1. Tests override it.
var exitWithError = func() {
	os.Exit(1)
}
