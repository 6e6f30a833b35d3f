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

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/daemon"
	"github.com/we-are-mono/provisiond/types"
)

var probeHistory bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run a connectivity check now",
	Long: `Runs one captive-portal probe through the uplink interface. The result
does not count toward the online streak.`,
	Run: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolVar(&probeHistory, "history", false, "Graph recent probe latency")
}

func runProbe(cmd *cobra.Command, args []string) {
	if err := executeProbe(cmd.OutOrStdout(), defaultClient, probeHistory); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeProbe executes the probe command with the given client.
func executeProbe(w io.Writer, client ClientInterface, history bool) error {
	resp, err := sendRequest(client, daemon.Request{
		Command: daemon.CommandProbe,
		History: history,
	})
	if err != nil {
		return err
	}

	var report daemon.ProbeReport
	if err := decodeData(resp, &report); err != nil {
		return err
	}

	r := report.Result
	status := "[CLOSED]"
	if r.Open {
		status = "[OPEN]"
	}
	fmt.Fprintf(w, "%s code %s in %s\n", status, orDash(r.Code), r.Latency)
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", r.Error)
	}

	if history {
		printProbeHistory(w, report.History)
	}
	return nil
}

func printProbeHistory(w io.Writer, samples []types.ProbeSample) {
	fmt.Fprintln(w)
	if len(samples) == 0 {
		fmt.Fprintln(w, "No probe history yet")
		return
	}

	latencies := make([]float64, 0, len(samples))
	open := 0
	for _, s := range samples {
		latencies = append(latencies, s.LatencyMS)
		if s.Open {
			open++
		}
	}

	// Repeat a lone sample so the plot has a line to draw.
	if len(latencies) == 1 {
		latencies = append(latencies, latencies[0])
	}

	graph := asciigraph.Plot(latencies,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption("probe latency (ms)"))
	fmt.Fprintln(w, graph)
	fmt.Fprintf(w, "%d/%d probes open\n", open, len(samples))
}
