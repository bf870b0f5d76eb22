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

package health

import (
	"fmt"
	"net"
	"strings"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tunshare/tunshare/network"
)

// Status is the overall health of a sharing session.
type Status string

const (
	// Healthy everything works.
	Healthy = Status("healthy")
	// Degraded some capability is lost, traffic may still flow.
	Degraded = Status("degraded")
	// Down the VPN is gone, nothing is shared.
	Down = Status("down")
)

// Report is the result of a health check.
type Report struct {
	Status    Status
	Reason    string
	CheckedAt time.Time
}

// Target describes what to check.
type Target struct {
	VPN string
	// Gateway is the LAN address the NAT-PMP server listens on, nil skips the probe.
	Gateway net.IP
	DNS     []string
}

type interfaceLister interface {
	Detect() ([]network.Descriptor, error)
}

type forwardingReader interface {
	Enabled() (bool, error)
}

type dnsChecker interface {
	Check(server string) error
}

// Monitor checks a sharing session.
type Monitor struct {
	interfaces  interfaceLister
	forwarding  forwardingReader
	dns         dnsChecker
	probeNATPMP func(gateway net.IP) error
	now         func() time.Time
}

// NewMonitor creates health monitor. The DNS checker may be nil.
func NewMonitor(interfaces interfaceLister, forwarding forwardingReader, dns dnsChecker, natpmpTimeout time.Duration) *Monitor {
	return &Monitor{
		interfaces:  interfaces,
		forwarding:  forwarding,
		dns:         dns,
		probeNATPMP: NATPMPProbe(natpmpTimeout),
		now:         time.Now,
	}
}

// NATPMPProbe returns a probe asking the gateway for its external address.
func NATPMPProbe(timeout time.Duration) func(gateway net.IP) error {
	return func(gateway net.IP) error {
		client := natpmp.NewClientWithTimeout(gateway, timeout)
		if _, err := client.GetExternalAddress(); err != nil {
			return errors.Wrapf(err, "NAT-PMP server %s does not answer", gateway)
		}
		return nil
	}
}

// Check runs the checks from the most to the least severe and reports the first failure.
// Checks which cannot run are skipped rather than reported.
func (m *Monitor) Check(target Target) Report {
	report := Report{Status: Healthy, CheckedAt: m.now()}

	if reason, down := m.vpnDown(target.VPN); down {
		report.Status, report.Reason = Down, reason
		return report
	}

	var problems []string
	if enabled, err := m.forwarding.Enabled(); err != nil {
		log.Debug().Err(err).Msg("Skipping forwarding health check")
	} else if !enabled {
		problems = append(problems, "IP forwarding was disabled externally")
	}

	if target.Gateway != nil && m.probeNATPMP != nil {
		if err := m.probeNATPMP(target.Gateway); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if m.dns != nil && len(target.DNS) > 0 {
		var failed []string
		for _, server := range target.DNS {
			if err := m.dns.Check(server); err != nil {
				failed = append(failed, server)
			}
		}
		if len(failed) == len(target.DNS) {
			problems = append(problems, fmt.Sprintf("DNS servers unreachable: %s", strings.Join(failed, ", ")))
		}
	}

	if len(problems) > 0 {
		report.Status = Degraded
		report.Reason = strings.Join(problems, "; ")
	}
	return report
}

func (m *Monitor) vpnDown(name string) (string, bool) {
	descriptors, err := m.interfaces.Detect()
	if err != nil {
		log.Debug().Err(err).Msg("Skipping VPN health check")
		return "", false
	}
	d, ok := network.Find(descriptors, name)
	switch {
	case !ok:
		return fmt.Sprintf("VPN interface %s disappeared", name), true
	case !d.Up:
		return fmt.Sprintf("VPN interface %s is no longer up", name), true
	}
	return "", false
}
