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

package natpmp

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

const (
	announceCount    = 10
	announceInterval = 250 * time.Millisecond
)

// Announcer sends unsolicited external address notifications.
type Announcer interface {
	Announce(payload []byte) error
}

type multicastAnnouncer struct {
	pc  *ipv4.PacketConn
	dst *net.UDPAddr
}

// NewMulticastAnnouncer sends announcements through the server socket to the all-hosts
// group on the LAN interface, so they originate from the gateway address and port 5351.
func NewMulticastAnnouncer(lanInterface string) func(conn net.PacketConn) (Announcer, error) {
	return func(conn net.PacketConn) (Announcer, error) {
		iface, err := net.InterfaceByName(lanInterface)
		if err != nil {
			return nil, errors.Wrapf(err, "could not find interface %s", lanInterface)
		}
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastInterface(iface); err != nil {
			return nil, errors.Wrap(err, "could not set multicast interface")
		}
		if err := pc.SetMulticastTTL(1); err != nil {
			return nil, errors.Wrap(err, "could not set multicast TTL")
		}
		return &multicastAnnouncer{
			pc:  pc,
			dst: &net.UDPAddr{IP: MulticastGroup, Port: ClientPort},
		}, nil
	}
}

func (a *multicastAnnouncer) Announce(payload []byte) error {
	_, err := a.pc.WriteTo(payload, nil, a.dst)
	return err
}

// announceSchedule sends the payload ten times, starting at 250ms and doubling the interval.
func announceSchedule(ctx context.Context, c clock.Clock, announcer Announcer, payload func() []byte) {
	interval := announceInterval
	for i := 0; i < announceCount; i++ {
		if err := announcer.Announce(payload()); err != nil {
			log.Warn().Err(err).Msg("Failed to send NAT-PMP announcement")
		}
		if i == announceCount-1 {
			return
		}

		timer := c.Timer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		interval *= 2
	}
}
