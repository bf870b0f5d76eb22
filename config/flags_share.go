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

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// FlagUserConfig location of the user configuration file.
	FlagUserConfig = cli.StringFlag{
		Name:  "config",
		Usage: "User configuration file (TOML)",
	}
	// FlagVPNInterface VPN interface to share.
	FlagVPNInterface = cli.StringFlag{
		Name:  "vpn",
		Usage: "VPN interface to share from (auto-detected when empty)",
	}
	// FlagLANInterface LAN interface to share to.
	FlagLANInterface = cli.StringFlag{
		Name:  "lan",
		Usage: "LAN interface to share to (auto-detected when empty)",
	}
	// FlagDNSCustom DNS server handed out to LAN clients instead of the detected ones.
	FlagDNSCustom = cli.StringFlag{
		Name:  "dns.custom",
		Usage: "Custom DNS server address or preset name (cloudflare|google|quad9|opendns)",
	}
	// FlagDHCPEnabled starts the DHCP delegate with the session.
	FlagDHCPEnabled = cli.BoolFlag{
		Name:  "dhcp.enabled",
		Usage: "Start a DHCP server on the LAN interface when sharing begins",
		Value: true,
	}
	// FlagDHCPBinary overrides dnsmasq lookup.
	FlagDHCPBinary = cli.StringFlag{
		Name:  "dhcp.binary",
		Usage: "Path to the dnsmasq binary (looked up in PATH and Homebrew prefixes when empty)",
	}
	// FlagDHCPLeaseTime lease duration handed out by the DHCP server.
	FlagDHCPLeaseTime = cli.DurationFlag{
		Name:  "dhcp.lease-time",
		Usage: "DHCP lease duration",
		Value: 12 * time.Hour,
	}
	// FlagNATPMPEnabled starts the NAT-PMP server with the session.
	FlagNATPMPEnabled = cli.BoolFlag{
		Name:  "natpmp.enabled",
		Usage: "Start a NAT-PMP server on the LAN interface when sharing begins",
		Value: true,
	}
	// FlagNATPMPMaxLifetime upper bound for granted mapping lifetimes.
	FlagNATPMPMaxLifetime = cli.DurationFlag{
		Name:  "natpmp.max-lifetime",
		Usage: "Maximum lifetime granted to NAT-PMP mappings",
		Value: 2 * time.Hour,
	}
	// FlagNATPMPPorts range of external ports handed out to NAT-PMP clients.
	FlagNATPMPPorts = cli.StringFlag{
		Name:  "natpmp.ports",
		Usage: "Range of external ports for NAT-PMP mappings",
		Value: "1024:65535",
	}
	// FlagFirewallAnchor pf anchor owned by tunshare.
	FlagFirewallAnchor = cli.StringFlag{
		Name:  "firewall.anchor",
		Usage: "pf anchor used for NAT rules, must be referenced from pf.conf",
		Value: "com.apple/tunshare",
	}
	// FlagFirewallProtectedNetworks destinations which are never NATed.
	FlagFirewallProtectedNetworks = cli.StringFlag{
		Name:  "firewall.protected-networks",
		Usage: "Comma separated list of networks which must not be reached through the VPN",
	}
)

// RegisterFlagsShare registers sharing session CLI flags.
func RegisterFlagsShare(flags *[]cli.Flag) {
	*flags = append(*flags,
		&FlagVPNInterface,
		&FlagLANInterface,
		&FlagDNSCustom,
		&FlagDHCPEnabled,
		&FlagDHCPBinary,
		&FlagDHCPLeaseTime,
		&FlagNATPMPEnabled,
		&FlagNATPMPMaxLifetime,
		&FlagNATPMPPorts,
		&FlagFirewallAnchor,
		&FlagFirewallProtectedNetworks,
	)
}

// ParseFlagsShare fills in sharing options from CLI context.
func ParseFlagsShare(ctx *cli.Context) {
	Current.ParseStringFlag(ctx, FlagVPNInterface)
	Current.ParseStringFlag(ctx, FlagLANInterface)
	Current.ParseStringFlag(ctx, FlagDNSCustom)
	Current.ParseBoolFlag(ctx, FlagDHCPEnabled)
	Current.ParseStringFlag(ctx, FlagDHCPBinary)
	Current.ParseDurationFlag(ctx, FlagDHCPLeaseTime)
	Current.ParseBoolFlag(ctx, FlagNATPMPEnabled)
	Current.ParseDurationFlag(ctx, FlagNATPMPMaxLifetime)
	Current.ParseStringFlag(ctx, FlagNATPMPPorts)
	Current.ParseStringFlag(ctx, FlagFirewallAnchor)
	Current.ParseStringFlag(ctx, FlagFirewallProtectedNetworks)
}

// RegisterFlagsUserConfig registers the user configuration flag with its default location.
func RegisterFlagsUserConfig(flags *[]cli.Flag) {
	if dir, err := os.UserConfigDir(); err == nil {
		FlagUserConfig.Value = filepath.Join(dir, "tunshare", "config.toml")
	}
	*flags = append(*flags, &FlagUserConfig)
}

// LoadUserConfig loads the user configuration file named by the CLI context.
func LoadUserConfig(ctx *cli.Context) error {
	Current.ParseStringFlag(ctx, FlagUserConfig)
	location := GetString(FlagUserConfig)
	if location == "" {
		return nil
	}
	return Current.LoadUserConfig(location)
}
