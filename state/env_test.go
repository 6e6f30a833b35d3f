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

package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/types"
)

func envLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "y", "on", " On "} {
		assert.True(t, ParseBool(v), v)
	}
	for _, v := range []string{"", "0", "false", "no", "off", "enabled"} {
		assert.False(t, ParseBool(v), v)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := types.DefaultConfig()

	err := ApplyEnv(cfg, envLookup(map[string]string{
		"PROVISIOND_WLAN_IF":          "wlan1",
		"PROVISIOND_AP_IF":            "uap0",
		"PROVISIOND_AP_FORCE_BAND":    "a",
		"PROVISIOND_AP_FORCE_CHANNEL": "36",
		"PROVISIOND_CHECK_INTERVAL":   "0.25",
		"PROVISIOND_CHECK_TIMEOUT":    "2s",
		"PROVISIOND_ETH_METRIC":       "700",
		"PROVISIOND_EXIT_ON_ONLINE":   "yes",
		"PROVISIOND_AUTO_TEARDOWN":    "off",
		"PROVISIOND_HTTP_PORT":        "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "wlan1", cfg.UplinkInterface)
	assert.Equal(t, "uap0", cfg.APInterface)
	assert.Equal(t, "a", cfg.APForceBand)
	assert.Equal(t, "36", cfg.APForceChannel)
	assert.Equal(t, 250*time.Millisecond, cfg.CheckInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.CheckTimeout.Std())
	assert.Equal(t, 700, cfg.EthMetric)
	assert.True(t, cfg.ExitOnOnline)
	assert.False(t, cfg.AutoTeardown)
	assert.Equal(t, 8080, cfg.HTTPPort, "empty value keeps the default")
}

func TestApplyEnvMalformed(t *testing.T) {
	cfg := types.DefaultConfig()

	err := ApplyEnv(cfg, envLookup(map[string]string{
		"PROVISIOND_HTTP_PORT":      "eighty",
		"PROVISIOND_CHECK_INTERVAL": "often",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVISIOND_HTTP_PORT")
	assert.Contains(t, err.Error(), "PROVISIOND_CHECK_INTERVAL")
}
