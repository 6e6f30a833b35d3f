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

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// NFTConn is the subset of *nftables.Conn used by the netlink backend.
// Every call but Flush only queues a message; Flush sends them as one batch.
type NFTConn interface {
	AddTable(t *nftables.Table) *nftables.Table
	DelTable(t *nftables.Table)
	AddChain(c *nftables.Chain) *nftables.Chain
	AddRule(r *nftables.Rule) *nftables.Rule
	ListTablesOfFamily(family nftables.TableFamily) ([]*nftables.Table, error)
	Flush() error
}

// NetlinkFirewall programs the setup tables over nfnetlink.
type NetlinkFirewall struct {
	dial func() (NFTConn, error)
}

// NewNetlinkFirewall creates the default firewall backend.
func NewNetlinkFirewall() *NetlinkFirewall {
	return NewNetlinkFirewallWithConn(func() (NFTConn, error) {
		return nftables.New()
	})
}

// NewNetlinkFirewallWithConn creates a netlink backend on a custom
// connection factory.
func NewNetlinkFirewallWithConn(dial func() (NFTConn, error)) *NetlinkFirewall {
	return &NetlinkFirewall{dial: dial}
}

func (f *NetlinkFirewall) Name() string { return "netlink" }

func natTable() *nftables.Table {
	return &nftables.Table{Family: nftables.TableFamilyIPv4, Name: NATTableName}
}

func filterTable() *nftables.Table {
	return &nftables.Table{Family: nftables.TableFamilyINet, Name: FilterTableName}
}

// Apply replaces both tables in a single batch. Adding a table before
// deleting it makes the delete valid whether or not the table existed.
func (f *NetlinkFirewall) Apply(ctx context.Context, r SetupRules) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := f.dial()
	if err != nil {
		return fmt.Errorf("failed to open nftables connection: %w", err)
	}

	for _, t := range []*nftables.Table{natTable(), filterTable()} {
		conn.AddTable(t)
		conn.DelTable(t)
	}

	nat := conn.AddTable(natTable())
	prerouting := conn.AddChain(&nftables.Chain{
		Name:     "prerouting",
		Table:    nat,
		Type:     nftables.ChainTypeNAT,
		Hooknum:  nftables.ChainHookPrerouting,
		Priority: nftables.ChainPriorityNATDest,
	})
	postrouting := conn.AddChain(&nftables.Chain{
		Name:     "postrouting",
		Table:    nat,
		Type:     nftables.ChainTypeNAT,
		Hooknum:  nftables.ChainHookPostrouting,
		Priority: nftables.ChainPriorityNATSource,
	})

	redirects := []struct {
		proto byte
		port  uint16
		to    int
	}{
		{unix.IPPROTO_UDP, 53, r.DNSPort},
		{unix.IPPROTO_TCP, 53, r.DNSPort},
		{unix.IPPROTO_TCP, 80, r.CaptivePort},
	}
	for _, rd := range redirects {
		exprs := matchIfname(expr.MetaKeyIIFNAME, r.APInterface)
		exprs = append(exprs, matchDestPort(rd.proto, rd.port)...)
		exprs = append(exprs,
			&expr.Immediate{Register: 1, Data: binaryutil.BigEndian.PutUint16(uint16(rd.to))},
			&expr.Redir{RegisterProtoMin: 1},
		)
		conn.AddRule(&nftables.Rule{Table: nat, Chain: prerouting, Exprs: exprs})
	}

	conn.AddRule(&nftables.Rule{
		Table: nat,
		Chain: postrouting,
		Exprs: append(matchIfname(expr.MetaKeyOIFNAME, r.UplinkInterface), &expr.Masq{}),
	})

	filter := conn.AddTable(filterTable())
	drop := nftables.ChainPolicyDrop
	forward := conn.AddChain(&nftables.Chain{
		Name:     "forward",
		Table:    filter,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookForward,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &drop,
	})

	conn.AddRule(&nftables.Rule{
		Table: filter,
		Chain: forward,
		Exprs: append(matchEstablished(), accept()),
	})
	for _, pair := range [][2]string{
		{r.APInterface, r.UplinkInterface},
		{r.UplinkInterface, r.APInterface},
	} {
		exprs := matchIfname(expr.MetaKeyIIFNAME, pair[0])
		exprs = append(exprs, matchIfname(expr.MetaKeyOIFNAME, pair[1])...)
		conn.AddRule(&nftables.Rule{Table: filter, Chain: forward, Exprs: append(exprs, accept())})
	}

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("failed to commit setup tables: %w", err)
	}
	return nil
}

// Remove deletes whichever setup tables exist.
func (f *NetlinkFirewall) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := f.dial()
	if err != nil {
		return fmt.Errorf("failed to open nftables connection: %w", err)
	}

	pending := 0
	for _, t := range []*nftables.Table{natTable(), filterTable()} {
		tables, err := conn.ListTablesOfFamily(t.Family)
		if err != nil {
			return fmt.Errorf("failed to list nftables tables: %w", err)
		}
		for _, existing := range tables {
			if existing.Name == t.Name {
				conn.DelTable(t)
				pending++
				break
			}
		}
	}

	if pending == 0 {
		return nil
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("failed to delete setup tables: %w", err)
	}
	return nil
}

// ifnameBytes encodes an interface name the way the kernel stores it.
func ifnameBytes(name string) []byte {
	b := make([]byte, unix.IFNAMSIZ)
	copy(b, name)
	return b
}

func matchIfname(key expr.MetaKey, name string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: key, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(name)},
	}
}

func matchDestPort(proto byte, port uint16) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{proto}},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2,
			Len:          2,
		},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.BigEndian.PutUint16(port)},
	}
}

func matchEstablished() []expr.Any {
	return []expr.Any{
		&expr.Ct{Key: expr.CtKeySTATE, Register: 1},
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            4,
			Mask:           binaryutil.NativeEndian.PutUint32(expr.CtStateBitESTABLISHED | expr.CtStateBitRELATED),
			Xor:            []byte{0, 0, 0, 0},
		},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: []byte{0, 0, 0, 0}},
	}
}

func accept() expr.Any {
	return &expr.Verdict{Kind: expr.VerdictAccept}
}
