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
	"flag"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/port"
)

func parseShareFlags(t *testing.T, args ...string) (ShareOptions, error) {
	previous := config.Current
	t.Cleanup(func() { config.Current = previous })
	config.Current = config.NewConfig()

	var flags []cli.Flag
	config.RegisterFlagsShare(&flags)
	set := flag.NewFlagSet("share", flag.ContinueOnError)
	for _, f := range flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))

	config.ParseFlagsShare(cli.NewContext(nil, set, nil))
	return ParseShareOptions()
}

func TestParseShareOptionsDefaults(t *testing.T) {
	options, err := parseShareFlags(t)
	require.NoError(t, err)

	assert.Empty(t, options.VPN)
	assert.Nil(t, options.CustomDNS)
	assert.True(t, options.DHCP)
	assert.True(t, options.NATPMP)
	assert.Equal(t, 12*time.Hour, options.LeaseTime)
	assert.Equal(t, 2*time.Hour, options.MaxLifetime)
	assert.Equal(t, port.Range{Start: 1024, End: 65535}, options.Ports)
	assert.Equal(t, "com.apple/tunshare", options.Anchor)
}

func TestParseShareOptionsFromFlags(t *testing.T) {
	options, err := parseShareFlags(t,
		"--vpn", "utun4",
		"--lan", "bridge100",
		"--dns.custom", "cloudflare",
		"--dhcp.enabled=false",
		"--natpmp.ports", "40000:40100",
		"--firewall.protected-networks", "10.0.0.0/8, 192.168.0.0/16",
	)
	require.NoError(t, err)

	assert.Equal(t, "utun4", options.VPN)
	assert.Equal(t, "bridge100", options.LAN)
	assert.True(t, net.IPv4(1, 1, 1, 1).Equal(options.CustomDNS))
	assert.False(t, options.DHCP)
	assert.Equal(t, 101, options.Ports.Capacity())
	assert.Len(t, options.Protected, 2)
}

func TestParseShareOptionsRejectsInvalidValues(t *testing.T) {
	for _, args := range [][]string{
		{"--dns.custom", "my-router"},
		{"--natpmp.ports", "80:8080"},
		{"--natpmp.ports", "2000"},
		{"--natpmp.max-lifetime", "3h"},
		{"--firewall.anchor", ""},
	} {
		_, err := parseShareFlags(t, args...)
		assert.Error(t, err, args)
	}
}
