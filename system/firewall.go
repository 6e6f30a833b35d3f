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
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

// Names of the nftables tables owned by provisiond. Nothing outside these
// tables is ever touched.
const (
	NATTableName    = "setupnat"
	FilterTableName = "setup"
)

// SetupRules describes the captive redirect and NAT for the setup network.
type SetupRules struct {
	APInterface     string
	UplinkInterface string
	DNSPort         int
	CaptivePort     int
}

// Validate checks that the rules can be rendered.
func (r SetupRules) Validate() error {
	if r.APInterface == "" || r.UplinkInterface == "" {
		return fmt.Errorf("firewall rules need both interfaces (ap=%q uplink=%q)", r.APInterface, r.UplinkInterface)
	}
	if r.APInterface == r.UplinkInterface {
		return fmt.Errorf("firewall rules need distinct interfaces, got %s twice", r.APInterface)
	}
	for name, port := range map[string]int{"dns": r.DNSPort, "captive": r.CaptivePort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s port %d", name, port)
		}
	}
	return nil
}

// FirewallBackend installs and removes the setup tables.
type FirewallBackend interface {
	Name() string
	// Apply atomically replaces both setup tables.
	Apply(ctx context.Context, rules SetupRules) error
	// Remove deletes both setup tables. Missing tables are not an error.
	Remove(ctx context.Context) error
}

// FirewallManager tracks whether the setup rules are installed.
type FirewallManager struct {
	backend FirewallBackend

	mu      sync.Mutex
	applied *SetupRules
}

// NewFirewallManager creates a FirewallManager on backend.
func NewFirewallManager(backend FirewallBackend) *FirewallManager {
	return &FirewallManager{backend: backend}
}

// Apply installs rules, replacing any previous setup tables. Repeated calls
// converge on one copy of each rule.
func (f *FirewallManager) Apply(ctx context.Context, rules SetupRules) error {
	if err := rules.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.backend.Apply(ctx, rules); err != nil {
		return fmt.Errorf("failed to apply setup firewall (%s): %w", f.backend.Name(), err)
	}

	r := rules
	f.applied = &r
	logger.Info("Setup firewall applied",
		logger.Field{Key: "backend", Value: f.backend.Name()},
		logger.Field{Key: "ap", Value: rules.APInterface},
		logger.Field{Key: "uplink", Value: rules.UplinkInterface})
	return nil
}

// Remove deletes the setup tables.
func (f *FirewallManager) Remove(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.backend.Remove(ctx); err != nil {
		return fmt.Errorf("failed to remove setup firewall (%s): %w", f.backend.Name(), err)
	}

	f.applied = nil
	logger.Info("Setup firewall removed", logger.Field{Key: "backend", Value: f.backend.Name()})
	return nil
}

// Applied reports whether the setup tables are currently installed.
func (f *FirewallManager) Applied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied != nil
}

// RenderRuleset renders rules as an nft script defining both tables.
func RenderRuleset(r SetupRules) string {
	var b strings.Builder

	fmt.Fprintf(&b, "table ip %s {\n", NATTableName)
	b.WriteString("\tchain prerouting {\n")
	b.WriteString("\t\ttype nat hook prerouting priority -100; policy accept;\n")
	fmt.Fprintf(&b, "\t\tiifname %q udp dport 53 redirect to :%d\n", r.APInterface, r.DNSPort)
	fmt.Fprintf(&b, "\t\tiifname %q tcp dport 53 redirect to :%d\n", r.APInterface, r.DNSPort)
	fmt.Fprintf(&b, "\t\tiifname %q tcp dport 80 redirect to :%d\n", r.APInterface, r.CaptivePort)
	b.WriteString("\t}\n")
	b.WriteString("\tchain postrouting {\n")
	b.WriteString("\t\ttype nat hook postrouting priority 100; policy accept;\n")
	fmt.Fprintf(&b, "\t\toifname %q masquerade\n", r.UplinkInterface)
	b.WriteString("\t}\n")
	b.WriteString("}\n")

	fmt.Fprintf(&b, "table inet %s {\n", FilterTableName)
	b.WriteString("\tchain forward {\n")
	b.WriteString("\t\ttype filter hook forward priority 0; policy drop;\n")
	b.WriteString("\t\tct state established,related accept\n")
	fmt.Fprintf(&b, "\t\tiifname %q oifname %q accept\n", r.APInterface, r.UplinkInterface)
	fmt.Fprintf(&b, "\t\tiifname %q oifname %q accept\n", r.UplinkInterface, r.APInterface)
	b.WriteString("\t}\n")
	b.WriteString("}\n")

	return b.String()
}

// NewFirewallBackend returns the backend named kind.
func NewFirewallBackend(kind string, runner CommandRunner, timeout time.Duration) (FirewallBackend, error) {
	switch kind {
	case types.FirewallBackendNetlink, "":
		return NewNetlinkFirewall(), nil
	case types.FirewallBackendNft:
		return NewNftFirewall(runner, timeout), nil
	default:
		return nil, fmt.Errorf("unknown firewall backend %q", kind)
	}
}
