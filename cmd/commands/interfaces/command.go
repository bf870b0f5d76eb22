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

package interfaces

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/network"
	"github.com/tunshare/tunshare/utils/cmdutil"
)

type detector interface {
	Detect() ([]network.Descriptor, error)
}

var flagJSON = cli.BoolFlag{
	Name:  "json",
	Usage: "Print interfaces as JSON",
}

// NewCommand function creates interfaces command
func NewCommand() *cli.Command {
	return newCommand(network.NewDetector(cmdutil.ExecRunner{}))
}

func newCommand(d detector) *cli.Command {
	return &cli.Command{
		Name:      "interfaces",
		Usage:     "List network interfaces which can be shared",
		ArgsUsage: " ",
		Flags:     []cli.Flag{&flagJSON},
		Action: func(ctx *cli.Context) error {
			descriptors, err := d.Detect()
			if err != nil {
				return err
			}
			if ctx.Bool(flagJSON.Name) {
				enc := json.NewEncoder(ctx.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(descriptors)
			}
			return printTable(ctx.App.Writer, descriptors)
		},
	}
}

func printTable(out io.Writer, descriptors []network.Descriptor) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTATE\tADDRESS\tDESCRIPTION")
	for _, d := range descriptors {
		state := "down"
		if d.Up {
			state = "up"
		}
		if d.Default {
			state += ",default"
		}
		addr := "-"
		if ipNet, ok := d.IPv4(); ok {
			addr = ipNet.String()
		}
		description := strings.TrimSpace(d.Description)
		if description == "" {
			description = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Kind, state, addr, description)
	}
	return w.Flush()
}
