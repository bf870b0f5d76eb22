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

package dns

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Preset is a well-known public resolver.
type Preset struct {
	Name string
	IP   string
}

// Presets lists resolvers selectable by name.
var Presets = []Preset{
	{Name: "Cloudflare", IP: "1.1.1.1"},
	{Name: "Google", IP: "8.8.8.8"},
	{Name: "Quad9", IP: "9.9.9.9"},
	{Name: "OpenDNS", IP: "208.67.222.222"},
}

// Source tells where the effective servers come from.
type Source string

const (
	// SourceCustom servers were chosen by the user.
	SourceCustom = Source("custom")
	// SourceVPN servers were announced by the VPN.
	SourceVPN = Source("vpn")
	// SourceSystem servers come from the host configuration.
	SourceSystem = Source("system")
	// SourceNone nothing is known.
	SourceNone = Source("none")
)

// Choice is the DNS configuration handed out to LAN clients.
type Choice struct {
	// Custom overrides discovered servers when set.
	Custom net.IP
	// VPN servers discovered for the VPN interface.
	VPN []string
	// System servers of the host.
	System []string
}

// ParseCustom accepts a preset name or an IPv4 address. Empty input clears the override.
func ParseCustom(value string) (net.IP, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "auto") {
		return nil, nil
	}
	for _, p := range Presets {
		if strings.EqualFold(p.Name, value) {
			return net.ParseIP(p.IP).To4(), nil
		}
	}
	ip := net.ParseIP(value).To4()
	if ip == nil {
		return nil, errors.Errorf("invalid DNS server %q: IPv4 address or preset name expected", value)
	}
	return ip, nil
}

// Effective returns servers by priority: custom, VPN, system.
func (c Choice) Effective() []string {
	switch c.Source() {
	case SourceCustom:
		return []string{c.Custom.String()}
	case SourceVPN:
		return c.VPN
	case SourceSystem:
		return c.System
	default:
		return nil
	}
}

// Source returns where Effective servers come from.
func (c Choice) Source() Source {
	switch {
	case c.Custom != nil:
		return SourceCustom
	case len(c.VPN) > 0:
		return SourceVPN
	case len(c.System) > 0:
		return SourceSystem
	default:
		return SourceNone
	}
}
