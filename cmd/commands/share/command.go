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

package share

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/tunshare/tunshare/cmd"
	"github.com/tunshare/tunshare/cmd/commands/clio"
	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/share"
	"github.com/tunshare/tunshare/health"
)

// CommandName is the name of this command
const CommandName = "share"

const eventBuffer = 64

// NewCommand function creates share command
func NewCommand() *cli.Command {
	var flags []cli.Flag
	config.RegisterFlagsShare(&flags)

	return &cli.Command{
		Name:      CommandName,
		Usage:     "Share the VPN connection with a LAN interface until interrupted",
		ArgsUsage: " ",
		Flags:     flags,
		Action: func(ctx *cli.Context) error {
			config.ParseFlagsShare(ctx)
			options, err := cmd.ParseShareOptions()
			if err != nil {
				return err
			}

			di := &cmd.Dependencies{}
			if err := di.Bootstrap(options); err != nil {
				return err
			}
			defer di.Guarantor.Guard()

			// The bus delivers synchronously from the control loop, never block it.
			states := make(chan share.AppEventState, eventBuffer)
			reports := make(chan health.Report, eventBuffer)
			if err := di.EventBus.Subscribe(share.AppTopicState, func(e share.AppEventState) {
				select {
				case states <- e:
				default:
					log.Warn().Msgf("Dropped state event %s", e.State)
				}
			}); err != nil {
				return err
			}
			if err := di.EventBus.Subscribe(share.AppTopicHealth, func(r health.Report) {
				select {
				case reports <- r:
				default:
				}
			}); err != nil {
				return err
			}

			go di.Orchestrator.Run()
			cmd.StopOnInterrupts(cmd.HardKiller(di.Shutdown))

			if err := di.Orchestrator.Start(); err != nil {
				return err
			}
			if err := follow(states, reports, di.Orchestrator.Done()); err != nil {
				return multierr.Append(err, di.Shutdown())
			}
			return nil
		},
	}
}

// follow prints session progress until the control loop exits or starting fails.
func follow(states <-chan share.AppEventState, reports <-chan health.Report, done <-chan struct{}) error {
	var last health.Status
	for {
		select {
		case e := <-states:
			switch {
			case e.State == share.Active && e.Previous == share.Starting:
				printActive(e.Snapshot)
			case e.State == share.Stopping:
				clio.Status("STOPPING", "Reversing system changes")
			case e.Snapshot.LastError != "":
				return errors.New(e.Snapshot.LastError)
			}
		case r := <-reports:
			if r.Status == last {
				continue
			}
			last = r.Status
			if r.Status == health.Healthy {
				clio.Success("Sharing is healthy again")
			} else {
				clio.Warnf("Sharing is %s: %s\n", r.Status, r.Reason)
			}
		case <-done:
			return nil
		}
	}
}

func printActive(snap share.Snapshot) {
	clio.Success(fmt.Sprintf("Sharing %s with %s, gateway %s", snap.VPN, snap.LAN, snap.Gateway))
	clio.Info(fmt.Sprintf("DNS: %s (%s)", strings.Join(snap.DNS.Effective(), ", "), snap.DNSSource))
	if snap.DHCPRange != "" {
		clio.Info("DHCP range: " + snap.DHCPRange)
	}
	for _, r := range snap.Resources {
		if r.Reason != "" {
			clio.Warnf("%s %s: %s\n", r.Resource, r.State, r.Reason)
		} else {
			clio.Status(strings.ToUpper(string(r.State)), r.Resource)
		}
	}
	clio.Info("Press Ctrl+C to stop sharing")
}
