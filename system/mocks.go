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

package system

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/nftables"
	"github.com/vishvananda/netlink"
)

// MockNetlinkClient is a mock implementation of NetlinkClient for testing.
type MockNetlinkClient struct {
	mu sync.Mutex

	// State
	Links     map[string]netlink.Link
	Addresses map[string][]netlink.Addr
	Routes    []netlink.Route

	// Call counters for verification
	LinkByNameCalls int
	LinkListCalls   int
	AddrListCalls   int
	RouteListCalls  int

	// Error injection for testing error paths
	LinkByNameError error
	LinkListError   error
	AddrListError   error
	RouteListError  error
}

// NewMockNetlinkClient creates a new MockNetlinkClient.
func NewMockNetlinkClient() *MockNetlinkClient {
	return &MockNetlinkClient{
		Links:     make(map[string]netlink.Link),
		Addresses: make(map[string][]netlink.Addr),
	}
}

func (m *MockNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkByNameCalls++

	if m.LinkByNameError != nil {
		return nil, m.LinkByNameError
	}

	link, ok := m.Links[name]
	if !ok {
		return nil, fmt.Errorf("Link not found")
	}
	return link, nil
}

func (m *MockNetlinkClient) LinkList() ([]netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkListCalls++

	if m.LinkListError != nil {
		return nil, m.LinkListError
	}

	links := make([]netlink.Link, 0, len(m.Links))
	for _, link := range m.Links {
		links = append(links, link)
	}
	return links, nil
}

func (m *MockNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddrListCalls++

	if m.AddrListError != nil {
		return nil, m.AddrListError
	}

	return m.Addresses[link.Attrs().Name], nil
}

func (m *MockNetlinkClient) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteListCalls++

	if m.RouteListError != nil {
		return nil, m.RouteListError
	}

	routes := make([]netlink.Route, len(m.Routes))
	copy(routes, m.Routes)
	return routes, nil
}

// MockSysctlClient is a mock implementation of SysctlClient for testing.
type MockSysctlClient struct {
	mu sync.Mutex

	// State
	Values map[string]string

	// Call counters
	GetCalls int
	SetCalls int

	// Error injection
	GetError error
	SetError error
}

// NewMockSysctlClient creates a new MockSysctlClient.
func NewMockSysctlClient() *MockSysctlClient {
	return &MockSysctlClient{
		Values: make(map[string]string),
	}
}

func (m *MockSysctlClient) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++

	if m.GetError != nil {
		return "", m.GetError
	}

	value, ok := m.Values[key]
	if !ok {
		return "", fmt.Errorf("sysctl key not found: %s", key)
	}
	return value, nil
}

func (m *MockSysctlClient) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++

	if m.SetError != nil {
		return m.SetError
	}

	m.Values[key] = value
	return nil
}

// MockFilesystemClient is a mock implementation of FilesystemClient for testing.
type MockFilesystemClient struct {
	mu sync.Mutex

	// State
	Files map[string][]byte

	// Call counters
	ReadFileCalls  int
	WriteFileCalls int

	// Error injection
	ReadFileError  error
	WriteFileError error
}

// NewMockFilesystemClient creates a new MockFilesystemClient.
func NewMockFilesystemClient() *MockFilesystemClient {
	return &MockFilesystemClient{
		Files: make(map[string][]byte),
	}
}

func (m *MockFilesystemClient) ReadFile(filename string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadFileCalls++

	if m.ReadFileError != nil {
		return nil, m.ReadFileError
	}

	data, ok := m.Files[filename]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return data, nil
}

func (m *MockFilesystemClient) WriteFile(filename string, data []byte, perm uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteFileCalls++

	if m.WriteFileError != nil {
		return m.WriteFileError
	}

	m.Files[filename] = data
	return nil
}

// MockResult is a canned command result.
type MockResult struct {
	Output string
	Err    error
}

// MockCommandRunner is a mock implementation of CommandRunner for testing.
// Results are looked up by the full command line; Handler, when set, is
// consulted first and may return ok=false to fall through.
type MockCommandRunner struct {
	mu sync.Mutex

	// State
	Results map[string]MockResult
	Handler func(cmdline string, input []byte) (MockResult, bool)

	// Call tracking
	Commands []string
	Inputs   map[string][]byte
	RunCalls int
}

// NewMockCommandRunner creates a new MockCommandRunner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Results: make(map[string]MockResult),
		Inputs:  make(map[string][]byte),
	}
}

func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.RunInput(ctx, nil, name, args...)
}

func (m *MockCommandRunner) RunInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls++

	cmdline := strings.Join(append([]string{name}, args...), " ")
	m.Commands = append(m.Commands, cmdline)
	if input != nil {
		m.Inputs[cmdline] = input
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Handler != nil {
		if res, ok := m.Handler(cmdline, input); ok {
			return []byte(res.Output), res.Err
		}
	}

	res, ok := m.Results[cmdline]
	if !ok {
		return []byte{}, nil
	}
	return []byte(res.Output), res.Err
}

// SetOutput sets the output for a command line.
func (m *MockCommandRunner) SetOutput(cmdline, output string) {
	m.SetResult(cmdline, output, nil)
}

// SetResult sets output and error for a command line.
func (m *MockCommandRunner) SetResult(cmdline, output string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[cmdline] = MockResult{Output: output, Err: err}
}

// Ran reports whether a command line was executed.
func (m *MockCommandRunner) Ran(cmdline string) bool {
	return m.Count(cmdline) > 0
}

// Count returns how often a command line was executed.
func (m *MockCommandRunner) Count(cmdline string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Commands {
		if c == cmdline {
			n++
		}
	}
	return n
}

// History returns a copy of the executed command lines.
func (m *MockCommandRunner) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Commands...)
}

// MockRadio is a mock implementation of Radio for testing.
type MockRadio struct {
	mu sync.Mutex

	// State
	Ifaces     []RadioInterface
	ListingOut string
	// CreatedType is the type reported for interfaces created by AddAPInterface.
	CreatedType string

	// Call tracking
	Added   []string
	Deleted []string

	// Error injection
	InterfacesError error
	AddError        error
	DeleteError     error
}

// NewMockRadio creates a MockRadio listing ifaces.
func NewMockRadio(ifaces ...RadioInterface) *MockRadio {
	return &MockRadio{Ifaces: ifaces, CreatedType: "AP"}
}

func (m *MockRadio) Interfaces(ctx context.Context) ([]RadioInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InterfacesError != nil {
		return nil, m.InterfacesError
	}
	return append([]RadioInterface(nil), m.Ifaces...), nil
}

func (m *MockRadio) AddAPInterface(ctx context.Context, parent, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added = append(m.Added, parent+">"+name)

	if m.AddError != nil {
		return m.AddError
	}
	m.Ifaces = append(m.Ifaces, RadioInterface{Name: name, Type: m.CreatedType})
	return nil
}

func (m *MockRadio) DeleteInterface(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, name)

	if m.DeleteError != nil {
		return m.DeleteError
	}
	kept := m.Ifaces[:0]
	for _, ifi := range m.Ifaces {
		if ifi.Name != name {
			kept = append(kept, ifi)
		}
	}
	m.Ifaces = kept
	return nil
}

func (m *MockRadio) Listing(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListingOut, nil
}

// MockFirewallBackend is a mock implementation of FirewallBackend for testing.
type MockFirewallBackend struct {
	mu sync.Mutex

	// State
	Installed *SetupRules

	// Call counters
	ApplyCalls  int
	RemoveCalls int

	// Error injection
	ApplyError  error
	RemoveError error
}

// NewMockFirewallBackend creates a new MockFirewallBackend.
func NewMockFirewallBackend() *MockFirewallBackend {
	return &MockFirewallBackend{}
}

func (m *MockFirewallBackend) Name() string { return "mock" }

func (m *MockFirewallBackend) Apply(ctx context.Context, rules SetupRules) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApplyCalls++

	if m.ApplyError != nil {
		return m.ApplyError
	}
	r := rules
	m.Installed = &r
	return nil
}

func (m *MockFirewallBackend) Remove(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++

	if m.RemoveError != nil {
		return m.RemoveError
	}
	m.Installed = nil
	return nil
}

// MockNFTConn records queued nftables messages and applies them on Flush.
type MockNFTConn struct {
	mu sync.Mutex

	// Tables holds committed tables keyed by "family/name".
	Tables map[string]*nftables.Table
	// Rules holds committed rules per table key.
	Rules map[string][]*nftables.Rule
	// Chains holds committed chains per table key.
	Chains map[string][]*nftables.Chain

	pending []func()

	// Call counters
	FlushCalls int
	DelCalls   int

	// Error injection
	FlushError error
	ListError  error
}

// NewMockNFTConn creates an empty MockNFTConn.
func NewMockNFTConn() *MockNFTConn {
	return &MockNFTConn{
		Tables: make(map[string]*nftables.Table),
		Rules:  make(map[string][]*nftables.Rule),
		Chains: make(map[string][]*nftables.Chain),
	}
}

func tableKey(t *nftables.Table) string {
	return fmt.Sprintf("%d/%s", t.Family, t.Name)
}

func (m *MockNFTConn) AddTable(t *nftables.Table) *nftables.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, func() { m.Tables[tableKey(t)] = t })
	return t
}

func (m *MockNFTConn) DelTable(t *nftables.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DelCalls++
	m.pending = append(m.pending, func() {
		key := tableKey(t)
		delete(m.Tables, key)
		delete(m.Rules, key)
		delete(m.Chains, key)
	})
}

func (m *MockNFTConn) AddChain(c *nftables.Chain) *nftables.Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, func() {
		key := tableKey(c.Table)
		m.Chains[key] = append(m.Chains[key], c)
	})
	return c
}

func (m *MockNFTConn) AddRule(r *nftables.Rule) *nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, func() {
		key := tableKey(r.Table)
		m.Rules[key] = append(m.Rules[key], r)
	})
	return r
}

func (m *MockNFTConn) ListTablesOfFamily(family nftables.TableFamily) ([]*nftables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	var tables []*nftables.Table
	for _, t := range m.Tables {
		if t.Family == family {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// Flush applies the queued messages, or none of them on error.
func (m *MockNFTConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++

	pending := m.pending
	m.pending = nil
	if m.FlushError != nil {
		return m.FlushError
	}
	for _, apply := range pending {
		apply()
	}
	return nil
}

// RuleCount returns the number of committed rules in a table.
func (m *MockNFTConn) RuleCount(family nftables.TableFamily, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rules[tableKey(&nftables.Table{Family: family, Name: name})])
}
