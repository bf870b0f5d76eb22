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
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/share"
	"github.com/tunshare/tunshare/dhcp"
	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/eventbus"
	"github.com/tunshare/tunshare/firewall"
	"github.com/tunshare/tunshare/health"
	"github.com/tunshare/tunshare/nat"
	"github.com/tunshare/tunshare/natpmp"
	"github.com/tunshare/tunshare/network"
	"github.com/tunshare/tunshare/session"
	"github.com/tunshare/tunshare/teardown"
	"github.com/tunshare/tunshare/utils/cmdutil"
)

const (
	probeTimeout     = 2 * time.Second
	debugInfoTimeout = 5 * time.Second
)

// Dependencies is DI container for top level components which is reused in several places
type Dependencies struct {
	EventBus eventbus.EventBus
	Runner   cmdutil.Runner

	Interfaces    *network.Detector
	DNSDiscoverer *dns.Discoverer
	DNSProbe      *dns.Probe

	Forwarding nat.Forwarding
	Firewall   *firewall.Anchor
	Redirects  *firewall.Anchor
	DHCP       *dhcp.Delegate
	Health     *health.Monitor

	Guarantor    *teardown.Guarantor
	Orchestrator *share.Orchestrator
	Inspector    *share.Inspector
}

// BootstrapSystem creates the components which read or change the host.
func (di *Dependencies) BootstrapSystem(options ShareOptions) {
	di.EventBus = eventbus.New()
	di.Runner = cmdutil.ExecRunner{}
	config.Current.EnableEventPublishing(di.EventBus)

	di.Interfaces = network.NewDetector(di.Runner)
	di.DNSDiscoverer = dns.NewDiscoverer(di.Runner)
	di.DNSProbe = dns.NewProbe(probeTimeout)

	di.Forwarding = nat.NewForwarding()
	di.Firewall = firewall.NewAnchor(di.Runner, options.Anchor, options.Protected)
	di.Redirects = di.Firewall.Sub("natpmp")
	di.DHCP = dhcp.NewDelegate(options.DHCPBinary)
	di.Health = health.NewMonitor(di.Interfaces, di.Forwarding, di.DNSProbe, probeTimeout)

	di.Inspector = share.NewInspector(di.Forwarding, func() ([]dhcp.Lease, error) {
		return dhcp.ReadLeases(LeaseFile)
	}, di.Firewall, di.Redirects)
}

// Bootstrap initiates all container dependencies of a sharing session.
func (di *Dependencies) Bootstrap(options ShareOptions) error {
	if err := RequireRoot(); err != nil {
		return err
	}
	if options.DHCP {
		if _, err := dhcp.NewDelegate(options.DHCPBinary).Resolve(); err != nil {
			log.Warn().Err(err).Msg("DHCP server will not be available, LAN clients need static addresses")
		}
	}

	di.BootstrapSystem(options)
	di.Guarantor = teardown.NewGuarantor(func(r session.Resource, err error) {
		if err != nil {
			di.EventBus.Publish("teardown:"+r.String(), err.Error())
		}
	})
	di.Orchestrator = share.New(share.Deps{
		Publisher:     di.EventBus,
		Interfaces:    di.Interfaces,
		DNS:           di.DNSDiscoverer,
		Forwarding:    di.Forwarding,
		Firewall:      di.Firewall,
		DHCP:          di.DHCP,
		NewPortMapper: di.newPortMapper(options),
		Health:        di.Health,
		Preferences:   config.Current,
		Guarantor:     di.Guarantor,
	}, share.Options{
		VPN:        options.VPN,
		LAN:        options.LAN,
		AutoSelect: true,
		DHCP:       options.DHCP,
		NATPMP:     options.NATPMP,
		CustomDNS:  options.CustomDNS,
		LeaseTime:  options.LeaseTime,
		LeaseFile:  LeaseFile,
	})
	return nil
}

func (di *Dependencies) newPortMapper(options ShareOptions) func(s *session.Session) share.PortMapper {
	return func(s *session.Session) share.PortMapper {
		opts := natpmp.DefaultOptions(s.VPN.Name, s.LAN.Name, s.LANAddr)
		opts.MaxLifetime = options.MaxLifetime
		opts.MinPort = options.Ports.Start
		opts.MaxPort = options.Ports.End
		opts.Rules = di.Redirects
		vpn := s.VPN.Name
		opts.ExternalIP = func() (net.IP, error) {
			return network.InterfaceIPv4(vpn)
		}
		return natpmp.New(opts)
	}
}

// DebugInfo reads pf, forwarding and DHCP state from the host.
func (di *Dependencies) DebugInfo() (share.Debug, error) {
	ctx, cancel := context.WithTimeout(context.Background(), debugInfoTimeout)
	defer cancel()

	debug, err := di.Inspector.Collect(ctx)
	return debug, errors.Wrap(err, "could not collect debug information")
}

// Shutdown reverses every system change and stops the orchestrator.
func (di *Dependencies) Shutdown() (err error) {
	if di.Orchestrator != nil {
		err = multierr.Append(err, di.Orchestrator.Shutdown())
	}
	if di.Guarantor != nil {
		err = multierr.Append(err, di.Guarantor.Run())
	}
	return err
}
