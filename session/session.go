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

package session

import (
	"net"

	"github.com/pkg/errors"

	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/network"
)

// ID identifies a sharing session.
type ID string

// Resource is a sub-resource enabled by a sharing session. Values follow the startup order.
type Resource int

const (
	// Forwarding is the kernel IP forwarding flag.
	Forwarding Resource = iota
	// Firewall is the NAT rule set in the pf anchor.
	Firewall
	// DHCP is the external DHCP server on the LAN interface.
	DHCP
	// NATPMP is the port mapping server.
	NATPMP
)

// Resources lists all sub-resources in startup order.
var Resources = []Resource{Forwarding, Firewall, DHCP, NATPMP}

// String returns resource name for logs and UI.
func (r Resource) String() string {
	switch r {
	case Forwarding:
		return "forwarding"
	case Firewall:
		return "firewall"
	case DHCP:
		return "dhcp"
	case NATPMP:
		return "natpmp"
	default:
		return "unknown"
	}
}

// Required reports whether a failure of the resource aborts the session.
func (r Resource) Required() bool {
	return r == Forwarding || r == Firewall
}

// Lifecycle is the state of a single sub-resource.
type Lifecycle string

const (
	// Disabled resource is not running.
	Disabled = Lifecycle("disabled")
	// Enabled resource is running.
	Enabled = Lifecycle("enabled")
	// Degraded resource failed to start, the session continues without it.
	Degraded = Lifecycle("degraded")
	// Skipped optional resource was turned off by preference.
	Skipped = Lifecycle("skipped")
)

// Session is the single active sharing configuration.
type Session struct {
	ID      ID
	VPN     network.Descriptor
	LAN     network.Descriptor
	LANAddr net.IPNet
	DNS     dns.Choice

	flags   [NATPMP + 1]Lifecycle
	reasons [NATPMP + 1]string
}

// New creates session for the interface pair with every resource disabled.
func New(id ID, vpn, lan network.Descriptor, choice dns.Choice) (*Session, error) {
	addr, ok := lan.IPv4()
	if !ok {
		return nil, errors.Errorf("LAN interface %s has no IPv4 address", lan.Name)
	}
	if _, ok := vpn.IPv4(); !ok {
		return nil, errors.Errorf("VPN interface %s has no IPv4 address", vpn.Name)
	}
	if vpn.Name == lan.Name {
		return nil, errors.New("VPN and LAN interfaces must differ")
	}

	s := &Session{ID: id, VPN: vpn, LAN: lan, LANAddr: addr, DNS: choice}
	for i := range s.flags {
		s.flags[i] = Disabled
	}
	return s, nil
}

// State returns lifecycle of the resource.
func (s *Session) State(r Resource) Lifecycle {
	return s.flags[r]
}

// Reason returns the failure message of a degraded resource.
func (s *Session) Reason(r Resource) string {
	return s.reasons[r]
}

// MarkEnabled records a resource as running. Every earlier resource must already be
// settled (enabled, or degraded when not required) and no later one may be running.
func (s *Session) MarkEnabled(r Resource) error {
	if err := s.checkStartOrder(r); err != nil {
		return err
	}
	s.flags[r] = Enabled
	s.reasons[r] = ""
	return nil
}

// MarkDegraded records a failed optional resource.
func (s *Session) MarkDegraded(r Resource, reason string) error {
	if r.Required() {
		return errors.Errorf("%s is required and cannot be degraded", r)
	}
	if err := s.checkStartOrder(r); err != nil {
		return err
	}
	s.flags[r] = Degraded
	s.reasons[r] = reason
	return nil
}

// MarkFailed records that a running optional resource stopped on its own.
func (s *Session) MarkFailed(r Resource, reason string) error {
	if r.Required() {
		return errors.Errorf("%s is required and cannot fail alone", r)
	}
	if s.flags[r] != Enabled {
		return errors.Errorf("%s is not running", r)
	}
	s.flags[r] = Degraded
	s.reasons[r] = reason
	return nil
}

// MarkSkipped records an optional resource which is not started at all.
func (s *Session) MarkSkipped(r Resource) error {
	if r.Required() {
		return errors.Errorf("%s is required and cannot be skipped", r)
	}
	if err := s.checkStartOrder(r); err != nil {
		return err
	}
	s.flags[r] = Skipped
	s.reasons[r] = ""
	return nil
}

// MarkDisabled records a stopped resource. Resources are disabled in reverse
// startup order, so no later resource may still be running.
func (s *Session) MarkDisabled(r Resource) error {
	for later := r + 1; later <= NATPMP; later++ {
		if s.flags[later] == Enabled {
			return errors.Errorf("cannot disable %s while %s is enabled", r, later)
		}
	}
	s.flags[r] = Disabled
	return nil
}

// Enabled returns running resources in startup order.
func (s *Session) Enabled() []Resource {
	var res []Resource
	for _, r := range Resources {
		if s.flags[r] == Enabled {
			res = append(res, r)
		}
	}
	return res
}

// Degraded returns resources which failed to start.
func (s *Session) Degraded() []Resource {
	var res []Resource
	for _, r := range Resources {
		if s.flags[r] == Degraded {
			res = append(res, r)
		}
	}
	return res
}

func (s *Session) checkStartOrder(r Resource) error {
	if r < Forwarding || r > NATPMP {
		return errors.Errorf("unknown resource %d", r)
	}
	for earlier := Forwarding; earlier < r; earlier++ {
		switch s.flags[earlier] {
		case Enabled:
		case Degraded, Skipped:
			if earlier.Required() {
				return errors.Errorf("cannot enable %s: %s is degraded", r, earlier)
			}
		default:
			return errors.Errorf("cannot enable %s before %s", r, earlier)
		}
	}
	for later := r + 1; later <= NATPMP; later++ {
		if s.flags[later] != Disabled {
			return errors.Errorf("cannot enable %s after %s", r, later)
		}
	}
	return nil
}
