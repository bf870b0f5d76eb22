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
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Probe checks that a resolver answers queries.
type Probe struct {
	Client *dns.Client
	Name   string
}

// NewProbe returns a probe asking for the root NS records.
func NewProbe(timeout time.Duration) *Probe {
	return &Probe{
		Client: &dns.Client{Net: "udp", Timeout: timeout},
		Name:   ".",
	}
}

// Check sends a single query to the server and expects any well formed answer.
func (p *Probe) Check(server string) error {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(p.Name), dns.TypeNS)

	address := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		address = net.JoinHostPort(server, "53")
	}
	resp, _, err := p.Client.Exchange(req, address)
	if err != nil {
		return errors.Wrapf(err, "DNS server %s is not reachable", server)
	}
	if resp.Rcode == dns.RcodeServerFailure || resp.Rcode == dns.RcodeRefused {
		return errors.Errorf("DNS server %s answered %s", server, dns.RcodeToString[resp.Rcode])
	}
	return nil
}
