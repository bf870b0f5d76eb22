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
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// RuleSink loads packet filter rules, an empty rule set flushes them.
type RuleSink interface {
	Load(rules string) error
}

// RenderRedirects returns redirect rules forwarding mapped ports arriving on the
// VPN interface to the LAN clients.
func RenderRedirects(vpn string, mappings []Mapping) string {
	var sb strings.Builder
	for _, m := range mappings {
		fmt.Fprintf(&sb, "rdr pass on %s inet proto %s from any to any port %d -> %s port %d\n",
			vpn, m.Protocol, m.ExternalPort, m.Client, m.InternalPort)
	}
	return sb.String()
}

// ruleSyncer mirrors the mapping table into the sink. Notifications arriving
// while a load is running collapse into one more load.
type ruleSyncer struct {
	sink   RuleSink
	render func() string
	kick   chan struct{}
}

func newRuleSyncer(sink RuleSink, render func() string) *ruleSyncer {
	return &ruleSyncer{
		sink:   sink,
		render: render,
		kick:   make(chan struct{}, 1),
	}
}

func (s *ruleSyncer) notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *ruleSyncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			if err := s.sink.Load(s.render()); err != nil {
				log.Error().Err(err).Msg("Failed to update NAT-PMP redirect rules")
			}
		}
	}
}
