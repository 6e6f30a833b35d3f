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

// Package state loads the daemon configuration and manages the small amount
// of state provisiond keeps on disk.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/we-are-mono/provisiond/types"
	"github.com/we-are-mono/provisiond/validation"
)

const (
	defaultConfigBasePath = "/etc/provisiond"
	configFileName        = "provisiond.json"
)

// GetConfigDir returns the configuration directory path.
// Checks PROVISIOND_CONFIG_DIR environment variable, falls back to /etc/provisiond
func GetConfigDir() string {
	if dir := os.Getenv("PROVISIOND_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigBasePath
}

// ConfigPath returns the path of the optional JSON configuration file.
func ConfigPath() string {
	return filepath.Join(GetConfigDir(), configFileName)
}

// LoadConfig builds the daemon configuration: defaults, then the optional
// JSON file, then PROVISIOND_* environment variables. The result is validated.
func LoadConfig() (*types.Config, error) {
	cfg := types.DefaultConfig()

	if err := loadConfigFile(ConfigPath(), cfg); err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	return cfg, nil
}

// loadConfigFile overlays the JSON file at path onto cfg. A missing file is not an error.
func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		// Provide more helpful error message for JSON syntax errors
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col := getLineCol(data, syntaxErr.Offset)
			return fmt.Errorf("failed to parse config at %s line %d, column %d: %w",
				path, line, col, err)
		}
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// getLineCol calculates the line and column number for a byte offset in JSON data
func getLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// writeFileAtomic writes data to a temp file next to path and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
