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
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/daemon"
	"github.com/we-are-mono/provisiond/types"
)

var verboseStatus bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provisioning status",
	Long:  `Displays the daemon mode, the connectivity streak and the setup access point.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&verboseStatus, "verbose", "v", false, "Show routes, devices and links")
}

func runStatus(cmd *cobra.Command, args []string) {
	if err := executeStatus(cmd.OutOrStdout(), defaultClient, verboseStatus); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeStatus fetches and prints the daemon status.
func executeStatus(w io.Writer, client ClientInterface, verbose bool) error {
	resp, err := sendRequest(client, daemon.Request{
		Command: daemon.CommandStatus,
		Verbose: verbose,
	})
	if err != nil {
		return err
	}

	var st types.DaemonStatus
	if err := decodeData(resp, &st); err != nil {
		return err
	}

	printStatus(w, &st)
	if verbose {
		printVerboseStatus(w, &st)
	}
	return nil
}

func printStatus(w io.Writer, st *types.DaemonStatus) {
	fmt.Fprintln(w, "provisiond")
	fmt.Fprintln(w, "==========")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s Mode:       %s\n", modeSymbol(st.Mode), st.Mode)
	if st.LastError != "" {
		fmt.Fprintf(w, "  Last Error: %s\n", st.LastError)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Internet:     %s\n", boolToStatus(st.InternetOpen))
	fmt.Fprintf(w, "  Streak:     %d/%d\n", st.SuccessStreak, st.RequiredSuccesses)
	if st.LastProbeCode != "" {
		fmt.Fprintf(w, "  Last Probe: %s", st.LastProbeCode)
		if st.LastProbeAt != nil {
			fmt.Fprintf(w, " at %s", st.LastProbeAt.Local().Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	if st.OnlineAt != nil {
		fmt.Fprintf(w, "  Online At:  %s\n", st.OnlineAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Check URL:  %s\n", st.CheckURL)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Setup AP:     %s on %s\n", st.SetupSSID, st.APInterface)
	if st.Profile.Band != "" || st.Profile.Channel != "" {
		fmt.Fprintf(w, "  Radio:      band %s, channel %s\n", orDash(st.Profile.Band), orDash(st.Profile.Channel))
	}
	if st.Profile.GatewayCIDR != "" {
		fmt.Fprintf(w, "  Gateway:    %s\n", st.Profile.GatewayCIDR)
	}
	fmt.Fprintf(w, "  Portal:     port %d\n", st.HTTPPort)
	fmt.Fprintf(w, "Uplink:       %s\n", st.UplinkInterface)
}

func printVerboseStatus(w io.Writer, st *types.DaemonStatus) {
	fmt.Fprintln(w)
	if st.Host != nil {
		fmt.Fprintln(w, "SYSTEM")
		fmt.Fprintln(w, "------")
		fmt.Fprintf(w, "Hostname:       %s\n", st.Host.Hostname)
		fmt.Fprintf(w, "Kernel:         %s\n", st.Host.KernelVersion)
		fmt.Fprintf(w, "System Uptime:  %s\n", st.Host.Uptime)
		if st.IPForwarding != nil {
			fmt.Fprintf(w, "IP Forwarding:  %s\n", boolToStatus(*st.IPForwarding))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "ROUTES")
	fmt.Fprintln(w, "------")
	if len(st.Routes) == 0 {
		fmt.Fprintln(w, "(no default routes)")
	}
	for _, r := range st.Routes {
		fmt.Fprintln(w, r)
	}
	fmt.Fprintln(w)

	if len(st.Devices) > 0 {
		fmt.Fprintln(w, "DEVICES")
		fmt.Fprintln(w, "-------")
		for _, d := range st.Devices {
			fmt.Fprintf(w, "%-12s %-10s %-14s %s\n", d.Name, d.Type, d.State, d.Connection)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "LINKS")
	fmt.Fprintln(w, "-----")
	for _, l := range st.Links {
		printLink(w, l)
	}
}

func printLink(w io.Writer, l types.LinkStatus) {
	stateSymbol := "[UP]"
	if l.State != "up" {
		stateSymbol = "[DOWN]"
	}

	if l.Type != "" {
		fmt.Fprintf(w, "%s %s (%s)\n", stateSymbol, l.Name, l.Type)
	} else {
		fmt.Fprintf(w, "%s %s\n", stateSymbol, l.Name)
	}
	fmt.Fprintf(w, "    State:      %s\n", l.State)
	if l.State == "missing" {
		return
	}

	if len(l.Addresses) > 0 {
		fmt.Fprintf(w, "    IP Address: %s\n", strings.Join(l.Addresses, ", "))
	} else {
		fmt.Fprintln(w, "    IP Address: (none)")
	}
	if l.MTU > 0 {
		fmt.Fprintf(w, "    MTU:        %d\n", l.MTU)
	}

	fmt.Fprintf(w, "    RX:         %s", formatBytes(int64(l.RXBytes)))
	if l.RXErrors > 0 {
		fmt.Fprintf(w, " [%d errors]", l.RXErrors)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "    TX:         %s", formatBytes(int64(l.TXBytes)))
	if l.TXErrors > 0 {
		fmt.Fprintf(w, " [%d errors]", l.TXErrors)
	}
	fmt.Fprintln(w)
}

func modeSymbol(m types.Mode) string {
	switch m {
	case types.ModeOnline:
		return "[OK]"
	case types.ModeError:
		return "[ERROR]"
	case types.ModeSetup, types.ModeProvisioning:
		return "[SETUP]"
	default:
		return "[INFO]"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func boolToStatus(b bool) string {
	if b {
		return "Active"
	}
	return "Inactive"
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
