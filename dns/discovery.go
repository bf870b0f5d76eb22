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
	"bufio"
	"sort"
	"strings"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tunshare/tunshare/utils/cmdutil"
)

const resolvConf = "/etc/resolv.conf"

// Discoverer finds resolvers configured on the host.
type Discoverer struct {
	runner     cmdutil.Runner
	resolvConf string
}

// NewDiscoverer returns a discoverer which reads scutil output and falls back to resolv.conf.
func NewDiscoverer(runner cmdutil.Runner) *Discoverer {
	return &Discoverer{runner: runner, resolvConf: resolvConf}
}

// Discover returns the resolvers attached to the VPN interface and the system ones.
func (d *Discoverer) Discover(vpnInterface string) (Choice, error) {
	var choice Choice
	out, err := d.runner.Output("scutil", "--dns")
	if err != nil {
		log.Debug().Err(err).Msg("scutil is not available, using resolv.conf")
	} else {
		choice.VPN = parseInterfaceResolvers(out, vpnInterface)
		choice.System = parseDefaultResolver(out)
	}

	if len(choice.System) == 0 {
		servers, err := configuredServers(d.resolvConf)
		if err != nil {
			return choice, err
		}
		choice.System = servers
	}
	return choice, nil
}

// configuredServers returns DNS server IPs from the system DNS configuration.
func configuredServers(path string) ([]string, error) {
	config, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error loading DNS config")
	}
	return config.Servers, nil
}

// parseInterfaceResolvers collects nameservers of every resolver block scoped to the interface.
func parseInterfaceResolvers(output, iface string) []string {
	var (
		servers  []string
		current  []string
		relevant bool
	)
	flush := func() {
		if relevant {
			servers = append(servers, current...)
		}
		current = nil
		relevant = false
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "resolver #"):
			flush()
		case strings.HasPrefix(line, "if_index") && strings.Contains(line, "("+iface+")"):
			relevant = true
		case strings.HasPrefix(line, "nameserver["):
			if server := fieldValue(line); server != "" {
				current = append(current, server)
			}
		}
	}
	flush()

	return dedup(servers)
}

// parseDefaultResolver returns nameservers of the first resolver block.
func parseDefaultResolver(output string) []string {
	var servers []string
	inFirst := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "resolver #1" {
			inFirst = true
			continue
		}
		if strings.HasPrefix(line, "resolver #") && inFirst {
			break
		}
		if inFirst && strings.HasPrefix(line, "nameserver[") {
			if server := fieldValue(line); server != "" {
				servers = append(servers, server)
			}
		}
	}
	return servers
}

func fieldValue(line string) string {
	idx := strings.Index(line, " : ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+3:])
}

func dedup(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, s := range in {
		if i == 0 || in[i-1] != s {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
