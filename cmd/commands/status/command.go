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

package status

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/cmd"
	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/share"
)

// CommandName is the name of this command
const CommandName = "status"

var flagJSON = cli.BoolFlag{
	Name:  "json",
	Usage: "Print the state as JSON",
}

// NewCommand function creates status command
func NewCommand() *cli.Command {
	var flags []cli.Flag
	config.RegisterFlagsShare(&flags)

	return &cli.Command{
		Name:      CommandName,
		Usage:     "Show pf, forwarding and DHCP state of the host",
		ArgsUsage: " ",
		Flags:     append(flags, &flagJSON),
		Action: func(ctx *cli.Context) error {
			config.ParseFlagsShare(ctx)
			options, err := cmd.ParseShareOptions()
			if err != nil {
				return err
			}

			di := &cmd.Dependencies{}
			di.BootstrapSystem(options)
			debug, err := di.DebugInfo()
			if err != nil {
				return err
			}
			return render(ctx.App.Writer, debug, ctx.Bool(flagJSON.Name))
		},
	}
}

func render(out io.Writer, debug share.Debug, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(debug)
	}

	fmt.Fprintf(out, "Packet filter:  %s\n", onOff(debug.PFEnabled))
	fmt.Fprintf(out, "IP forwarding:  %s\n", onOff(debug.Forwarding))
	for _, anchor := range debug.Anchors {
		rules := strings.TrimSpace(anchor.Rules)
		if rules == "" {
			fmt.Fprintf(out, "Anchor %s: empty\n", anchor.Name)
			continue
		}
		fmt.Fprintf(out, "Anchor %s:\n", anchor.Name)
		for _, line := range strings.Split(rules, "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}

	if len(debug.Leases) == 0 {
		fmt.Fprintln(out, "DHCP leases:    none")
	} else {
		fmt.Fprintln(out, "DHCP leases:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  IP\tMAC\tHOSTNAME\tEXPIRES")
		for _, l := range debug.Leases {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", l.IP, l.MAC, l.Hostname, l.Expires.Format("2006-01-02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, e := range debug.Errors {
		fmt.Fprintf(out, "Error: %s\n", e)
	}
	return nil
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
