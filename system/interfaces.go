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

// Package system provides the OS integration of provisiond: wireless
// interfaces, NetworkManager profiles, nftables rules, route metrics and
// connectivity probing.
package system

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/vishvananda/netlink"
)

// NetlinkClient abstracts netlink operations for testability.
type NetlinkClient interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
}

// SysctlClient abstracts sysctl operations for testability.
type SysctlClient interface {
	// Get reads a sysctl value
	Get(key string) (string, error)
	// Set writes a sysctl value
	Set(key, value string) error
}

// FilesystemClient abstracts filesystem operations for testability.
type FilesystemClient interface {
	// ReadFile reads the entire file content
	ReadFile(filename string) ([]byte, error)
	// WriteFile writes data to a file
	WriteFile(filename string, data []byte, perm uint32) error
}

// CommandRunner abstracts command execution for testability.
// Implementations must honour ctx cancellation and deadlines.
type CommandRunner interface {
	// Run executes a command and returns its combined output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunInput is Run with data fed to the command's stdin
	RunInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
}

// DefaultNetlinkClient implements NetlinkClient using real netlink calls.
type DefaultNetlinkClient struct{}

// NewDefaultNetlinkClient creates a new DefaultNetlinkClient.
func NewDefaultNetlinkClient() *DefaultNetlinkClient {
	return &DefaultNetlinkClient{}
}

func (c *DefaultNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (c *DefaultNetlinkClient) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

func (c *DefaultNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (c *DefaultNetlinkClient) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}

// DefaultSysctlClient implements SysctlClient on top of /proc/sys.
type DefaultSysctlClient struct {
	fs FilesystemClient
}

// NewDefaultSysctlClient creates a new DefaultSysctlClient.
func NewDefaultSysctlClient(fs FilesystemClient) *DefaultSysctlClient {
	return &DefaultSysctlClient{fs: fs}
}

func (c *DefaultSysctlClient) Get(key string) (string, error) {
	data, err := c.fs.ReadFile(sysctlPath(key))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *DefaultSysctlClient) Set(key, value string) error {
	return c.fs.WriteFile(sysctlPath(key), []byte(value), 0600)
}

func sysctlPath(key string) string {
	return "/proc/sys/" + strings.ReplaceAll(key, ".", "/")
}

// DefaultFilesystemClient implements FilesystemClient using real filesystem operations.
type DefaultFilesystemClient struct{}

// NewDefaultFilesystemClient creates a new DefaultFilesystemClient.
func NewDefaultFilesystemClient() *DefaultFilesystemClient {
	return &DefaultFilesystemClient{}
}

func (c *DefaultFilesystemClient) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (c *DefaultFilesystemClient) WriteFile(filename string, data []byte, perm uint32) error {
	return os.WriteFile(filename, data, os.FileMode(perm))
}

// DefaultCommandRunner implements CommandRunner using exec.CommandContext.
type DefaultCommandRunner struct{}

// NewDefaultCommandRunner creates a new DefaultCommandRunner.
func NewDefaultCommandRunner() *DefaultCommandRunner {
	return &DefaultCommandRunner{}
}

func (c *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	return cmd.CombinedOutput()
}

func (c *DefaultCommandRunner) RunInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdin = bytes.NewReader(input)
	return cmd.CombinedOutput()
}
