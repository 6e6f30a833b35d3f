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
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/daemon"
	"github.com/we-are-mono/provisiond/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby Wi-Fi networks",
	Long:  `Asks the daemon to rescan on the uplink interface and prints one line per SSID, strongest first.`,
	Run:   runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	if err := executeScan(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeScan executes the scan command with the given client.
func executeScan(w io.Writer, client ClientInterface) error {
	resp, err := sendRequest(client, daemon.Request{Command: daemon.CommandScan})
	if err != nil {
		return err
	}

	var networks []types.Network
	if err := decodeData(resp, &networks); err != nil {
		return err
	}

	if len(networks) == 0 {
		fmt.Fprintln(w, "No networks found")
		return nil
	}

	fmt.Fprintf(w, "%-32s %-8s %s\n", "SSID", "SIGNAL", "SECURITY")
	for _, n := range networks {
		fmt.Fprintf(w, "%-32s %-8d %s\n", n.SSID, n.Signal, orDash(n.Security))
	}
	return nil
}
