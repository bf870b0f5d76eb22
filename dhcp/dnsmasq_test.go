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

package dhcp

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateway(cidr string) net.IPNet {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return net.IPNet{IP: ip.To4(), Mask: ipnet.Mask}
}

func TestRange(t *testing.T) {
	for _, tc := range []struct {
		gateway    string
		start, end string
	}{
		{gateway: "192.168.2.1/24", start: "192.168.2.10", end: "192.168.2.254"},
		{gateway: "192.168.2.50/24", start: "192.168.2.51", end: "192.168.2.254"},
		{gateway: "10.0.0.1/16", start: "10.0.0.10", end: "10.0.255.254"},
		{gateway: "172.16.5.1/32", start: "172.16.5.10", end: "172.16.5.254"},
		{gateway: "192.168.7.1/28", start: "192.168.7.10", end: "192.168.7.14"},
	} {
		t.Run(tc.gateway, func(t *testing.T) {
			start, end, err := Range(gateway(tc.gateway))
			require.NoError(t, err)
			assert.Equal(t, tc.start, start.String())
			assert.Equal(t, tc.end, end.String())
		})
	}
}

func TestRangeTooSmall(t *testing.T) {
	_, _, err := Range(gateway("192.168.7.14/28"))

	assert.Error(t, err)
}

func TestArgs(t *testing.T) {
	args, err := Args(Options{
		Interface: "en1",
		Gateway:   gateway("192.168.2.1/24"),
		DNS:       []string{"10.8.0.1", "1.1.1.1"},
		LeaseTime: time.Hour,
		LeaseFile: "/tmp/leases",
	})

	require.NoError(t, err)
	assert.Contains(t, args, "--interface=en1")
	assert.Contains(t, args, "--port=0")
	assert.Contains(t, args, "--dhcp-range=192.168.2.10,192.168.2.254,255.255.255.0,3600s")
	assert.Contains(t, args, "--dhcp-option=3,192.168.2.1")
	assert.Contains(t, args, "--dhcp-option=6,10.8.0.1,1.1.1.1")
	assert.Contains(t, args, "--dhcp-leasefile=/tmp/leases")
}

func TestArgsWithoutDNS(t *testing.T) {
	args, err := Args(Options{Interface: "en1", Gateway: gateway("192.168.2.1/24")})

	require.NoError(t, err)
	assert.Contains(t, args, "--dhcp-range=192.168.2.10,192.168.2.254,255.255.255.0,43200s")
	for _, a := range args {
		assert.NotContains(t, a, "--dhcp-option=6")
	}
}

func TestArgsWithoutInterface(t *testing.T) {
	_, err := Args(Options{Gateway: gateway("192.168.2.1/24")})

	assert.Error(t, err)
}

func TestResolveMissing(t *testing.T) {
	d := NewDelegate("")
	d.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	d.searchPaths = []string{filepath.Join(t.TempDir(), "dnsmasq")}

	_, err := d.Resolve()
	assert.Equal(t, ErrDependencyUnavailable, err)

	err = d.Start(Options{Interface: "en1", Gateway: gateway("192.168.2.1/24")})
	assert.True(t, errors.Is(err, ErrDependencyUnavailable))
}

func TestResolveConfiguredBinaryMissing(t *testing.T) {
	d := NewDelegate("/nonexistent/dnsmasq")

	_, err := d.Resolve()

	assert.True(t, errors.Is(err, ErrDependencyUnavailable))
}

func TestResolveSearchPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsmasq")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	d := NewDelegate("")
	d.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	d.searchPaths = []string{path}

	resolved, err := d.Resolve()

	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func fakeDnsmasq(t *testing.T, script string) *Delegate {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	path := filepath.Join(t.TempDir(), "dnsmasq")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))

	d := NewDelegate(path)
	d.startupWait = 100 * time.Millisecond
	d.grace = 300 * time.Millisecond
	return d
}

func TestStartStop(t *testing.T) {
	d := fakeDnsmasq(t, "trap 'exit 0' TERM\nwhile true; do sleep 0.05; done\n")
	opts := Options{Interface: "en1", Gateway: gateway("192.168.2.1/24")}

	require.NoError(t, d.Start(opts))
	assert.True(t, d.Running())
	assert.Error(t, d.Start(opts), "single instance")
	assert.Equal(t, "en1", d.Options().Interface)

	assert.NoError(t, d.Stop())
	assert.False(t, d.Running())
	assert.NoError(t, d.Stop(), "stop is idempotent")
}

func TestStopKillsStuckProcess(t *testing.T) {
	d := fakeDnsmasq(t, "trap '' TERM\nwhile true; do sleep 0.05; done\n")
	require.NoError(t, d.Start(Options{Interface: "en1", Gateway: gateway("192.168.2.1/24")}))

	assert.NoError(t, d.Stop())
	assert.False(t, d.Running())
}

func TestStopAfterProcessExited(t *testing.T) {
	d := fakeDnsmasq(t, "sleep 0.2\n")
	require.NoError(t, d.Start(Options{Interface: "en1", Gateway: gateway("192.168.2.1/24")}))

	<-d.Exited()
	assert.False(t, d.Running())
	assert.NoError(t, d.Stop())
}

func TestStartFailsWhenProcessExits(t *testing.T) {
	d := fakeDnsmasq(t, "echo 'dnsmasq: unknown interface en9' >&2\nexit 2\n")

	err := d.Start(Options{Interface: "en9", Gateway: gateway("192.168.2.1/24")})

	assert.Error(t, err)
	assert.False(t, d.Running())
}

func TestReadLeases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsmasq.leases")
	require.NoError(t, os.WriteFile(path, []byte(
		"1760000000 aa:bb:cc:dd:ee:ff 192.168.2.10 iphone 01:aa:bb:cc:dd:ee:ff\n"+
			"0 11:22:33:44:55:66 192.168.2.11 * *\n"+
			"broken line\n"), 0644))

	leases, err := ReadLeases(path)

	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, Lease{Expires: time.Unix(1760000000, 0), MAC: "aa:bb:cc:dd:ee:ff", IP: "192.168.2.10", Hostname: "iphone"}, leases[0])
	assert.Equal(t, Lease{MAC: "11:22:33:44:55:66", IP: "192.168.2.11"}, leases[1])
}

func TestReadLeasesMissingFile(t *testing.T) {
	leases, err := ReadLeases(filepath.Join(t.TempDir(), "missing"))

	assert.NoError(t, err)
	assert.Nil(t, leases)
}
