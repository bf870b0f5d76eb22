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

package cmd

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/port"
	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/firewall"
)

// LeaseFile is where dnsmasq keeps its leases, the status command reads it.
const LeaseFile = "/var/run/tunshare/dnsmasq.leases"

// ShareOptions configure a sharing session.
type ShareOptions struct {
	VPN       string
	LAN       string
	CustomDNS net.IP

	DHCP       bool
	DHCPBinary string
	LeaseTime  time.Duration

	NATPMP      bool
	MaxLifetime time.Duration
	Ports       port.Range

	Anchor    string
	Protected []*net.IPNet
}

// ParseShareOptions reads session options from the current configuration.
func ParseShareOptions() (ShareOptions, error) {
	custom, err := dns.ParseCustom(config.GetString(config.FlagDNSCustom))
	if err != nil {
		return ShareOptions{}, err
	}
	ports, err := port.ParseRange(config.GetString(config.FlagNATPMPPorts))
	if err != nil {
		return ShareOptions{}, errors.Wrap(err, "invalid NAT-PMP ports")
	}
	if ports.Start < 1024 {
		return ShareOptions{}, errors.Errorf("NAT-PMP ports %s include privileged ports", ports)
	}
	lifetime := config.GetDuration(config.FlagNATPMPMaxLifetime)
	if lifetime <= 0 || lifetime > 2*time.Hour {
		return ShareOptions{}, errors.Errorf("NAT-PMP lifetime %s is out of range (0, 2h]", lifetime)
	}
	anchor := config.GetString(config.FlagFirewallAnchor)
	if anchor == "" {
		return ShareOptions{}, errors.New("firewall anchor must not be empty")
	}

	return ShareOptions{
		VPN:         config.GetString(config.FlagVPNInterface),
		LAN:         config.GetString(config.FlagLANInterface),
		CustomDNS:   custom,
		DHCP:        config.GetBool(config.FlagDHCPEnabled),
		DHCPBinary:  config.GetString(config.FlagDHCPBinary),
		LeaseTime:   config.GetDuration(config.FlagDHCPLeaseTime),
		NATPMP:      config.GetBool(config.FlagNATPMPEnabled),
		MaxLifetime: lifetime,
		Ports:       ports,
		Anchor:      anchor,
		Protected:   firewall.ParseProtectedNetworks(config.GetString(config.FlagFirewallProtectedNetworks)),
	}, nil
}
