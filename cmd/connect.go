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
)

var connectPassword string

var connectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Join an upstream Wi-Fi network",
	Long: `Connects the uplink interface to the given network. The setup access point
stays up until the connectivity monitor sees the internet.`,
	Args: cobra.ExactArgs(1),
	Run:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringVarP(&connectPassword, "password", "p", "", "Network passphrase (omit for open networks)")
}

func runConnect(cmd *cobra.Command, args []string) {
	if err := executeConnect(cmd.OutOrStdout(), defaultClient, args[0], connectPassword); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeConnect executes the connect command with the given client.
func executeConnect(w io.Writer, client ClientInterface, ssid, password string) error {
	fmt.Fprintf(w, "Connecting to %s...\n", ssid)

	resp, err := sendRequest(client, daemon.Request{
		Command:  daemon.CommandConnect,
		SSID:     ssid,
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[OK] %s\n", resp.Message)
	return nil
}
