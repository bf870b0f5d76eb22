/*
 * Copyright (C) 2026 The "tunshare" Authors.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package network

import (
	"bufio"
	"encoding/hex"
	"net"
	"strconv"
	"strings"

	"github.com/jackpal/gateway"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tunshare/tunshare/utils/cmdutil"
)

// Kind classifies an interface for sharing.
type Kind string

const (
	// KindVPN is a tunnel interface which carries the shared traffic out.
	KindVPN = Kind("vpn")
	// KindLAN is a physical interface clients connect through.
	KindLAN = Kind("lan")
	// KindOther is anything else (loopback, bridges to VMs, etc.).
	KindOther = Kind("other")
)

var (
	vpnPrefixes = []string{"utun", "ppp", "ipsec", "tun", "wg"}
	lanPrefixes = []string{"en", "eth", "bridge"}
)

// Descriptor is an immutable snapshot of a network interface.
type Descriptor struct {
	Name        string
	Kind        Kind
	Addresses   []net.IPNet
	Up          bool
	Description string
	Default     bool
	// Peer is the remote end of a point-to-point link.
	Peer net.IP
}

// IPv4 returns the first IPv4 network of the interface.
func (d Descriptor) IPv4() (net.IPNet, bool) {
	for _, a := range d.Addresses {
		if ip4 := a.IP.To4(); ip4 != nil {
			return net.IPNet{IP: ip4, Mask: a.Mask}, true
		}
	}
	return net.IPNet{}, false
}

// Usable reports if the interface can take part in a sharing session.
func (d Descriptor) Usable() bool {
	_, ok := d.IPv4()
	return d.Up && ok
}

// Detector enumerates interfaces of the host.
type Detector struct {
	runner         cmdutil.Runner
	defaultGateway func() (net.IP, error)
}

// NewDetector creates interface detector backed by ifconfig and networksetup.
func NewDetector(runner cmdutil.Runner) *Detector {
	return &Detector{runner: runner, defaultGateway: gateway.DiscoverGateway}
}

// Detect returns the current interface list.
func (d *Detector) Detect() ([]Descriptor, error) {
	out, err := d.runner.Output("ifconfig", "-a")
	if err != nil {
		return nil, errors.Wrap(err, "could not list interfaces")
	}
	descriptors := parseIfconfig(out)

	ports, err := d.runner.Output("networksetup", "-listallhardwareports")
	if err != nil {
		log.Debug().Err(err).Msg("Hardware ports are not available")
	} else {
		names := parseHardwarePorts(ports)
		for i := range descriptors {
			descriptors[i].Description = names[descriptors[i].Name]
		}
	}

	if gw, err := d.defaultGateway(); err != nil {
		log.Debug().Err(err).Msg("Default gateway not found")
	} else {
		for i := range descriptors {
			descriptors[i].Default = descriptors[i].routesTo(gw)
		}
	}

	return descriptors, nil
}

// routesTo reports if the gateway is reached directly through the interface.
func (d Descriptor) routesTo(gw net.IP) bool {
	if d.Peer != nil && d.Peer.Equal(gw) {
		return true
	}
	for _, a := range d.Addresses {
		if a.IP.Equal(gw) || a.Contains(gw) {
			return true
		}
	}
	return false
}

// Filter returns usable interfaces of the given kind.
func Filter(descriptors []Descriptor, kind Kind) []Descriptor {
	var res []Descriptor
	for _, d := range descriptors {
		if d.Kind == kind && d.Usable() {
			res = append(res, d)
		}
	}
	return res
}

// Find returns the descriptor with the given name.
func Find(descriptors []Descriptor, name string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// AutoSelect picks a VPN interface (the default route one if it is a tunnel)
// and the first usable LAN interface.
func AutoSelect(descriptors []Descriptor) (vpn, lan Descriptor, err error) {
	vpns := Filter(descriptors, KindVPN)
	if len(vpns) == 0 {
		return vpn, lan, errors.New("no active VPN interface found")
	}
	vpn = vpns[0]
	for _, d := range vpns {
		if d.Default {
			vpn = d
			break
		}
	}

	lans := Filter(descriptors, KindLAN)
	if len(lans) == 0 {
		return vpn, lan, errors.New("no active LAN interface found")
	}
	lan = lans[0]
	return vpn, lan, nil
}

// Classify returns the interface kind by its name.
func Classify(name string) Kind {
	for _, p := range vpnPrefixes {
		if strings.HasPrefix(name, p) {
			return KindVPN
		}
	}
	for _, p := range lanPrefixes {
		if strings.HasPrefix(name, p) {
			return KindLAN
		}
	}
	return KindOther
}

func parseIfconfig(output string) []Descriptor {
	var (
		res     []Descriptor
		current *Descriptor
	)
	flush := func() {
		if current != nil {
			res = append(res, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			idx := strings.Index(line, ":")
			if idx <= 0 {
				continue
			}
			flush()
			name := line[:idx]
			current = &Descriptor{
				Name: name,
				Kind: Classify(name),
				Up:   strings.Contains(line, "<UP"),
			}
			continue
		}
		if current == nil {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "inet":
			if ipnet, ok := parseInet(fields); ok {
				current.Addresses = append(current.Addresses, ipnet)
			}
			if len(fields) > 3 && fields[2] == "-->" && current.Peer == nil {
				current.Peer = net.ParseIP(fields[3]).To4()
			}
		case "inet6":
			if ipnet, ok := parseInet6(fields); ok {
				current.Addresses = append(current.Addresses, ipnet)
			}
		}
	}
	flush()

	return res
}

// parseInet handles "inet 192.168.2.1 netmask 0xffffff00 broadcast ..." and
// point-to-point "inet 10.8.0.6 --> 10.8.0.5 netmask 0xffffffff" lines.
func parseInet(fields []string) (net.IPNet, bool) {
	ip := net.ParseIP(fields[1]).To4()
	if ip == nil {
		return net.IPNet{}, false
	}
	mask := net.CIDRMask(32, 32)
	for i := 2; i < len(fields)-1; i++ {
		if fields[i] != "netmask" {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(fields[i+1], "0x"))
		if err == nil && len(raw) == net.IPv4len {
			mask = net.IPMask(raw)
		}
	}
	return net.IPNet{IP: ip, Mask: mask}, true
}

func parseInet6(fields []string) (net.IPNet, bool) {
	addr := fields[1]
	if idx := strings.Index(addr, "%"); idx >= 0 {
		addr = addr[:idx]
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return net.IPNet{}, false
	}
	mask := net.CIDRMask(128, 128)
	for i := 2; i < len(fields)-1; i++ {
		if fields[i] == "prefixlen" {
			if bits, err := strconv.Atoi(fields[i+1]); err == nil && bits <= 128 {
				mask = net.CIDRMask(bits, 128)
			}
		}
	}
	return net.IPNet{IP: ip, Mask: mask}, true
}

// parseHardwarePorts maps device names to their hardware port names.
func parseHardwarePorts(output string) map[string]string {
	res := make(map[string]string)
	var port string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Hardware Port:"):
			port = strings.TrimSpace(strings.TrimPrefix(line, "Hardware Port:"))
		case strings.HasPrefix(line, "Device:") && port != "":
			res[strings.TrimSpace(strings.TrimPrefix(line, "Device:"))] = port
			port = ""
		}
	}
	return res
}

// InterfaceIPv4 returns the current IPv4 address of the interface.
func InterfaceIPv4(name string) (net.IP, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not find interface %s", name)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, errors.Wrapf(err, "could not read addresses of %s", name)
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, errors.Errorf("interface %s has no IPv4 address", name)
}
