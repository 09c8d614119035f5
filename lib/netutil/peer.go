// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the small amount of socket plumbing the
// listener and sessions share: turning a remote address into the
// fixed-width identity key, and classifying connection errors.
package netutil

import (
	"fmt"
	"net"
	"net/netip"
)

// PeerAddress is a remote IP as a 128-bit big-endian value. IPv4 peers
// use the IPv4-mapped IPv6 form (::ffff:a.b.c.d), so every address has
// the same width and one address always maps to one key.
type PeerAddress [16]byte

// PeerAddressFromIP converts an IP. Zones are dropped.
func PeerAddressFromIP(ip netip.Addr) PeerAddress {
	return PeerAddress(ip.Unmap().As16())
}

// PeerAddressOf extracts the IP of a connection's remote address.
// Only TCP and UDP addresses carry an IP; anything else is an error.
func PeerAddressOf(addr net.Addr) (PeerAddress, error) {
	switch typed := addr.(type) {
	case *net.TCPAddr:
		ip, ok := netip.AddrFromSlice(typed.IP)
		if !ok {
			return PeerAddress{}, fmt.Errorf("netutil: invalid TCP peer IP %v", typed.IP)
		}
		return PeerAddressFromIP(ip), nil
	case *net.UDPAddr:
		ip, ok := netip.AddrFromSlice(typed.IP)
		if !ok {
			return PeerAddress{}, fmt.Errorf("netutil: invalid UDP peer IP %v", typed.IP)
		}
		return PeerAddressFromIP(ip), nil
	case nil:
		return PeerAddress{}, fmt.Errorf("netutil: connection has no remote address")
	default:
		addrPort, err := netip.ParseAddrPort(addr.String())
		if err != nil {
			return PeerAddress{}, fmt.Errorf("netutil: %s address %q has no IP: %w", addr.Network(), addr.String(), err)
		}
		return PeerAddressFromIP(addrPort.Addr()), nil
	}
}

// IP returns the address in its natural form: IPv4 for mapped
// addresses, IPv6 otherwise.
func (p PeerAddress) IP() netip.Addr {
	return netip.AddrFrom16(p).Unmap()
}

func (p PeerAddress) String() string {
	return p.IP().String()
}
