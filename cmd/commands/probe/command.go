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

package probe

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	flagGateway = cli.StringFlag{
		Name:  "gateway",
		Usage: "NAT-PMP gateway address (default gateway when empty)",
	}
	flagMap = cli.StringFlag{
		Name:  "map",
		Usage: "Request a mapping, protocol:internal[:external], e.g. udp:5000",
	}
	flagLifetime = cli.DurationFlag{
		Name:  "lifetime",
		Usage: "Lifetime of the requested mapping, zero deletes it",
		Value: time.Hour,
	}
	flagTimeout = cli.DurationFlag{
		Name:  "timeout",
		Usage: "Give up when the gateway does not answer in time",
		Value: 2 * time.Second,
	}
)

// NewCommand function creates probe command
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Query a NAT-PMP gateway for its external address and optionally map a port",
		ArgsUsage: " ",
		Flags:     []cli.Flag{&flagGateway, &flagMap, &flagLifetime, &flagTimeout},
		Action: func(ctx *cli.Context) error {
			gw, err := gatewayAddress(ctx.String(flagGateway.Name))
			if err != nil {
				return err
			}
			client := natpmp.NewClientWithTimeout(gw, ctx.Duration(flagTimeout.Name))
			return probe(ctx.App.Writer, client, gw, ctx.String(flagMap.Name), ctx.Duration(flagLifetime.Name))
		},
	}
}

type mapping struct {
	protocol string
	internal int
	external int
}

func parseMapping(value string) (mapping, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return mapping{}, errors.Errorf("invalid mapping %q, protocol:internal[:external] expected", value)
	}
	m := mapping{protocol: strings.ToLower(parts[0])}
	if m.protocol != "udp" && m.protocol != "tcp" {
		return mapping{}, errors.Errorf("unknown protocol %q", parts[0])
	}
	ports := make([]int, len(parts)-1)
	for i, p := range parts[1:] {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return mapping{}, errors.Wrapf(err, "invalid port %q", p)
		}
		ports[i] = int(port)
	}
	m.internal = ports[0]
	if len(ports) == 2 {
		m.external = ports[1]
	}
	return m, nil
}

func gatewayAddress(value string) (net.IP, error) {
	if value == "" {
		gw, err := gateway.DiscoverGateway()
		return gw, errors.Wrap(err, "could not discover default gateway")
	}
	gw := net.ParseIP(value).To4()
	if gw == nil {
		return nil, errors.Errorf("invalid gateway address %q", value)
	}
	return gw, nil
}

func probe(out io.Writer, client *natpmp.Client, gw net.IP, mapValue string, lifetime time.Duration) error {
	ext, err := client.GetExternalAddress()
	if err != nil {
		return errors.Wrapf(err, "gateway %s does not answer NAT-PMP", gw)
	}
	fmt.Fprintf(out, "Gateway %s: external address %s, epoch %ds\n",
		gw, net.IP(ext.ExternalIPAddress[:]), ext.SecondsSinceStartOfEpoc)

	if mapValue == "" {
		return nil
	}
	m, err := parseMapping(mapValue)
	if err != nil {
		return err
	}
	res, err := client.AddPortMapping(m.protocol, m.internal, m.external, int(lifetime/time.Second))
	if err != nil {
		return errors.Wrapf(err, "mapping %s refused", mapValue)
	}
	if res.PortMappingLifetimeInSeconds == 0 {
		fmt.Fprintf(out, "Mapping %s/%d deleted\n", m.protocol, m.internal)
		return nil
	}
	fmt.Fprintf(out, "Mapped %s %d -> external %d for %ds\n",
		m.protocol, res.InternalPort, res.MappedExternalPort, res.PortMappingLifetimeInSeconds)
	return nil
}
