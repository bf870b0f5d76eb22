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

package firewall

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseProtectedNetworks parses a comma separated CIDR list. Invalid entries are skipped.
func ParseProtectedNetworks(cfg string) (nets []*net.IPNet) {
	if cfg == "" {
		return nil
	}
	for _, s := range strings.Split(cfg, ",") {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(s))
		if err != nil {
			log.Error().Err(err).Msg("Could not parse protected network string")
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// RenderNAT returns the rule set masquerading LAN traffic behind the VPN interface address.
// Traffic to protected networks keeps its source address.
func RenderNAT(vpn, lan string, protected []*net.IPNet) string {
	var sb strings.Builder
	if len(protected) > 0 {
		destinations := make([]string, len(protected))
		for i, n := range protected {
			destinations[i] = n.String()
		}
		fmt.Fprintf(&sb, "no nat on %s inet from %s:network to { %s }\n", vpn, lan, strings.Join(destinations, ", "))
	}
	fmt.Fprintf(&sb, "nat on %s inet from %s:network to any -> (%s)\n", vpn, lan, vpn)
	fmt.Fprintf(&sb, "pass in quick on %s inet from %s:network to any keep state\n", lan, lan)
	fmt.Fprintf(&sb, "pass out quick on %s inet from (%s) to any keep state\n", vpn, vpn)
	return sb.String()
}
