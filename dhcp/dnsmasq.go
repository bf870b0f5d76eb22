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
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const logPrefix = "[dnsmasq] "

// ErrDependencyUnavailable is returned when dnsmasq is not installed.
var ErrDependencyUnavailable = errors.New("dnsmasq is not installed")

// searchPaths are tried after PATH, sudo often drops Homebrew locations from it.
var searchPaths = []string{
	"/opt/homebrew/sbin/dnsmasq",
	"/usr/local/sbin/dnsmasq",
	"/opt/local/sbin/dnsmasq",
}

// Options of a DHCP server instance.
type Options struct {
	// Interface to serve.
	Interface string
	// Gateway is the LAN address of this host with the LAN mask.
	Gateway net.IPNet
	// DNS servers handed out to clients.
	DNS       []string
	LeaseTime time.Duration
	LeaseFile string
}

// Lease is a DHCP lease recorded by dnsmasq.
type Lease struct {
	Expires  time.Time
	MAC      string
	IP       string
	Hostname string
}

// Delegate runs dnsmasq as the DHCP server of the LAN interface.
type Delegate struct {
	binary      string
	lookPath    func(file string) (string, error)
	searchPaths []string
	startupWait time.Duration
	grace       time.Duration

	mu      sync.Mutex
	proc    *process
	options Options
}

// NewDelegate creates a delegate. An empty binary searches dnsmasq on PATH and in Homebrew locations.
func NewDelegate(binary string) *Delegate {
	return &Delegate{
		binary:      binary,
		lookPath:    exec.LookPath,
		searchPaths: searchPaths,
		startupWait: 500 * time.Millisecond,
		grace:       5 * time.Second,
	}
}

// Resolve returns the dnsmasq executable path.
func (d *Delegate) Resolve() (string, error) {
	if d.binary != "" {
		if path, err := d.lookPath(d.binary); err == nil {
			return path, nil
		}
		return "", errors.Wrapf(ErrDependencyUnavailable, "%s not found", d.binary)
	}
	if path, err := d.lookPath("dnsmasq"); err == nil {
		return path, nil
	}
	for _, path := range d.searchPaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return path, nil
		}
	}
	return "", ErrDependencyUnavailable
}

// Start launches dnsmasq. The process must survive a short startup window, dnsmasq
// exits right away when the configuration or the interface is wrong.
func (d *Delegate) Start(opts Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc != nil {
		select {
		case <-d.proc.Exited():
		default:
			return errors.New("DHCP server is already running")
		}
	}

	path, err := d.Resolve()
	if err != nil {
		return err
	}
	args, err := Args(opts)
	if err != nil {
		return err
	}
	if opts.LeaseFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LeaseFile), 0700); err != nil {
			return errors.Wrap(err, "could not create lease file directory")
		}
	}

	proc, err := startProcess(logPrefix, path, args)
	if err != nil {
		return err
	}

	select {
	case <-proc.Exited():
		return errors.Errorf("dnsmasq exited on start: %v", proc.ExitErr())
	case <-time.After(d.startupWait):
	}

	d.proc = proc
	d.options = opts
	log.Info().Msgf("DHCP server started on %s", opts.Interface)
	return nil
}

// Stop terminates dnsmasq. Stopping a delegate which is not running, or whose
// process already exited, succeeds.
func (d *Delegate) Stop() error {
	d.mu.Lock()
	proc := d.proc
	d.proc = nil
	d.mu.Unlock()

	if proc == nil {
		return nil
	}
	if err := proc.Stop(d.grace); err != nil {
		return err
	}
	log.Info().Msg("DHCP server stopped")
	return nil
}

// Running reports if dnsmasq is alive.
func (d *Delegate) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		return false
	}
	select {
	case <-d.proc.Exited():
		return false
	default:
		return true
	}
}

// Exited returns a channel closed when the running process exits, nil when not running.
func (d *Delegate) Exited() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		return nil
	}
	return d.proc.Exited()
}

// Options returns options of the running instance.
func (d *Delegate) Options() Options {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.options
}

// Leases returns leases of the running instance.
func (d *Delegate) Leases() ([]Lease, error) {
	return ReadLeases(d.Options().LeaseFile)
}

// Range returns the address pool for the gateway network: from the 10th host
// address (or the one after the gateway, whichever is higher) to the last host.
func Range(gateway net.IPNet) (start, end net.IP, err error) {
	ip := gateway.IP.To4()
	if ip == nil {
		return nil, nil, errors.Errorf("gateway %s is not an IPv4 address", gateway.IP)
	}
	mask := poolMask(gateway.Mask)
	network := binary.BigEndian.Uint32(ip.Mask(mask))
	broadcast := network | ^binary.BigEndian.Uint32(mask)
	gw := binary.BigEndian.Uint32(ip)

	first, last := network+10, broadcast-1
	if gw >= first && gw <= last {
		first = gw + 1
	}
	if first > last {
		return nil, nil, errors.Errorf("network of %s is too small for a DHCP range", gateway.String())
	}
	return uint32ToIP(first), uint32ToIP(last), nil
}

// Args returns dnsmasq arguments serving DHCP only on the interface.
func Args(opts Options) ([]string, error) {
	if opts.Interface == "" {
		return nil, errors.New("DHCP interface is not set")
	}
	start, end, err := Range(opts.Gateway)
	if err != nil {
		return nil, err
	}
	leaseTime := opts.LeaseTime
	if leaseTime <= 0 {
		leaseTime = 12 * time.Hour
	}
	mask := poolMask(opts.Gateway.Mask)

	args := []string{
		"--keep-in-foreground",
		"--conf-file=/dev/null",
		"--port=0",
		"--bind-interfaces",
		"--except-interface=lo0",
		"--interface=" + opts.Interface,
		"--dhcp-authoritative",
		fmt.Sprintf("--dhcp-range=%s,%s,%s,%ds", start, end, net.IP(mask), int(leaseTime.Seconds())),
		"--dhcp-option=3," + opts.Gateway.IP.String(),
	}
	if len(opts.DNS) > 0 {
		args = append(args, "--dhcp-option=6,"+strings.Join(opts.DNS, ","))
	}
	if opts.LeaseFile != "" {
		args = append(args, "--dhcp-leasefile="+opts.LeaseFile)
	}
	return args, nil
}

// ReadLeases parses a dnsmasq lease file. A missing file has no leases.
func ReadLeases(path string) ([]Lease, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not read leases")
	}
	defer f.Close()

	var leases []Lease
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// Format: expiry MAC IP hostname clientID
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		var expiry int64
		if _, err := fmt.Sscan(fields[0], &expiry); err != nil {
			continue
		}
		lease := Lease{
			MAC:      fields[1],
			IP:       fields[2],
			Hostname: fields[3],
		}
		if expiry > 0 {
			lease.Expires = time.Unix(expiry, 0)
		}
		if lease.Hostname == "*" {
			lease.Hostname = ""
		}
		leases = append(leases, lease)
	}
	return leases, scanner.Err()
}

// poolMask returns the LAN mask, host routes and odd masks fall back to /24.
func poolMask(mask net.IPMask) net.IPMask {
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if ones, bits := mask.Size(); bits != 32 || ones > 28 || ones < 8 {
		return net.CIDRMask(24, 32)
	}
	return mask
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
