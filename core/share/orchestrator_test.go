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
	"encoding/binary"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunshare/tunshare/dhcp"
	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/firewall"
	"github.com/tunshare/tunshare/health"
	"github.com/tunshare/tunshare/natpmp"
	"github.com/tunshare/tunshare/network"
	"github.com/tunshare/tunshare/session"
	"github.com/tunshare/tunshare/teardown"
)

var (
	vpnIface = network.Descriptor{
		Name: "utun3", Kind: network.KindVPN, Up: true, Default: true,
		Addresses: []net.IPNet{{IP: net.IPv4(10, 8, 0, 6), Mask: net.CIDRMask(32, 32)}},
	}
	lanIface = network.Descriptor{
		Name: "en1", Kind: network.KindLAN, Up: true,
		Addresses: []net.IPNet{{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)}},
	}
	downIface = network.Descriptor{Name: "en0", Kind: network.KindLAN}
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

type fakeDetector struct {
	descriptors []network.Descriptor
	err         error
}

func (d *fakeDetector) Detect() ([]network.Descriptor, error) {
	return d.descriptors, d.err
}

type fakeDiscoverer struct{}

func (fakeDiscoverer) Discover(string) (dns.Choice, error) {
	return dns.Choice{VPN: []string{"10.8.0.1"}, System: []string{"192.168.1.1"}}, nil
}

type fakeForwarding struct {
	j       *journal
	err     error
	release chan struct{}
	crash   string
}

func (f *fakeForwarding) Enable() error {
	if f.release != nil {
		<-f.release
	}
	if f.crash != "" {
		panic(f.crash)
	}
	f.j.add("forwarding on")
	return f.err
}

func (f *fakeForwarding) Restore() error {
	f.j.add("forwarding restore")
	return nil
}

type fakeFirewall struct {
	j             *journal
	err           error
	removeRelease chan struct{}
}

func (f *fakeFirewall) Apply(vpn, lan string) error {
	f.j.add("firewall apply " + vpn + " " + lan)
	return f.err
}

func (f *fakeFirewall) Remove() error {
	if f.removeRelease != nil {
		<-f.removeRelease
	}
	f.j.add("firewall flush")
	return nil
}

type fakeDHCP struct {
	j      *journal
	err    error
	exited chan struct{}
	opts   dhcp.Options
}

func (f *fakeDHCP) Start(opts dhcp.Options) error {
	f.j.add("dhcp start")
	f.opts = opts
	return f.err
}

func (f *fakeDHCP) Stop() error {
	f.j.add("dhcp stop")
	return nil
}

func (f *fakeDHCP) Exited() <-chan struct{} {
	return f.exited
}

type fakeMapper struct {
	j    *journal
	err  error
	done chan struct{}
	once sync.Once
	exit error
}

func newFakeMapper(j *journal) *fakeMapper {
	return &fakeMapper{j: j, done: make(chan struct{})}
}

func (m *fakeMapper) Start() error {
	m.j.add("natpmp start")
	return m.err
}

func (m *fakeMapper) Stop() error {
	m.j.add("natpmp stop")
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *fakeMapper) crash(err error) {
	m.exit = err
	m.once.Do(func() { close(m.done) })
}

// slowMapper holds Start until released.
type slowMapper struct {
	*fakeMapper
	release chan struct{}
}

func (m *slowMapper) Start() error {
	<-m.release
	return m.fakeMapper.Start()
}

func (m *fakeMapper) Done() <-chan struct{}      { return m.done }
func (m *fakeMapper) Err() error                 { return m.exit }
func (m *fakeMapper) Mappings() []natpmp.Mapping { return nil }

type fakeHealth struct {
	report health.Report
}

func (h *fakeHealth) Check(target health.Target) health.Report {
	return h.report
}

type fakePrefs struct {
	mu    sync.Mutex
	saved map[string]interface{}
}

func (p *fakePrefs) SetUser(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.saved[key] = value
}

func (p *fakePrefs) RemoveUser(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.saved, key)
}

func (p *fakePrefs) SaveUserConfig() error { return nil }

type fakePublisher struct {
	states chan AppEventState
	health chan health.Report
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{states: make(chan AppEventState, 256), health: make(chan health.Report, 16)}
}

func (p *fakePublisher) Publish(topic string, data interface{}) {
	switch topic {
	case AppTopicState:
		p.states <- data.(AppEventState)
	case AppTopicHealth:
		p.health <- data.(health.Report)
	}
}

func (p *fakePublisher) waitFor(t *testing.T, state State) Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.states:
			if ev.State == state {
				return ev.Snapshot
			}
		case <-timeout:
			t.Fatalf("state %s not reached", state)
		}
	}
}

type fixture struct {
	j          *journal
	pub        *fakePublisher
	detector   *fakeDetector
	forwarding *fakeForwarding
	firewall   *fakeFirewall
	dhcp       *fakeDHCP
	mapper     *fakeMapper
	health     *fakeHealth
	prefs      *fakePrefs
	deps       Deps
	opts       Options
}

func newFixture() *fixture {
	j := &journal{}
	f := &fixture{
		j:          j,
		pub:        newFakePublisher(),
		detector:   &fakeDetector{descriptors: []network.Descriptor{downIface, lanIface, vpnIface}},
		forwarding: &fakeForwarding{j: j},
		firewall:   &fakeFirewall{j: j},
		dhcp:       &fakeDHCP{j: j, exited: make(chan struct{})},
		mapper:     newFakeMapper(j),
		health:     &fakeHealth{report: health.Report{Status: health.Healthy}},
		prefs:      &fakePrefs{saved: map[string]interface{}{}},
	}
	f.deps = Deps{
		Publisher:     f.pub,
		Interfaces:    f.detector,
		DNS:           fakeDiscoverer{},
		Forwarding:    f.forwarding,
		Firewall:      f.firewall,
		DHCP:          f.dhcp,
		NewPortMapper: func(*session.Session) PortMapper { return f.mapper },
		Health:        f.health,
		Preferences:   f.prefs,
		Guarantor:     teardown.NewGuarantor(nil),
	}
	f.opts = Options{
		AutoSelect:     true,
		DHCP:           true,
		NATPMP:         true,
		HealthInterval: time.Hour,
	}
	return f
}

func (f *fixture) run(t *testing.T) *Orchestrator {
	o := New(f.deps, f.opts)
	go o.Run()
	t.Cleanup(func() {
		_ = o.Shutdown()
	})
	return o
}

func TestStartAutoSelectsAndEnablesInOrder(t *testing.T) {
	f := newFixture()
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Active)

	assert.Equal(t, []string{"forwarding on", "firewall apply utun3 en1", "dhcp start", "natpmp start"}, f.j.list())
	assert.Equal(t, "utun3", snap.VPN)
	assert.Equal(t, "en1", snap.LAN)
	assert.Equal(t, "127.0.0.1", snap.Gateway)
	assert.Equal(t, dns.SourceVPN, snap.DNSSource)
	assert.Empty(t, snap.LastError)
	for _, rs := range snap.Resources {
		assert.Equal(t, session.Enabled, rs.State, rs.Resource.String())
	}
	assert.Equal(t, []string{"10.8.0.1"}, f.dhcp.opts.DNS)
	assert.Equal(t, "en1", f.dhcp.opts.Interface)
	assert.NotEmpty(t, snap.DHCPRange)
}

func TestManualSelection(t *testing.T) {
	f := newFixture()
	f.opts.AutoSelect = false
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, SelectingVpn)
	assert.Len(t, snap.Interfaces, 3)

	assert.Error(t, o.ConfirmVPN("en0"), "interface is down")
	assert.Error(t, o.ConfirmVPN("utun9"))
	err := o.ConfirmLAN("en1")
	assert.Equal(t, ErrInvalidState, errors.Cause(err))

	require.NoError(t, o.ConfirmVPN("utun3"))
	f.pub.waitFor(t, SelectingLan)
	assert.Error(t, o.ConfirmLAN("utun3"), "VPN and LAN must differ")

	require.NoError(t, o.ConfirmLAN("en1"))
	f.pub.waitFor(t, Active)
}

func TestInvalidIntents(t *testing.T) {
	f := newFixture()
	o := f.run(t)

	assert.Equal(t, ErrInvalidState, errors.Cause(o.ConfirmVPN("utun3")))
	assert.Equal(t, ErrInvalidState, errors.Cause(o.CommitDNS("1.1.1.1")))
	assert.NoError(t, o.Stop(), "stop while idle does nothing")

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.State)
}

func TestDetectionFailureReturnsToIdle(t *testing.T) {
	f := newFixture()
	f.detector.err = errors.New("ifconfig: command not found")
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Idle)

	assert.Contains(t, snap.LastError, "ifconfig")
	assert.Empty(t, f.j.list())
}

func TestNoVPNInterface(t *testing.T) {
	f := newFixture()
	f.detector.descriptors = []network.Descriptor{lanIface}
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Idle)

	assert.Equal(t, "no active VPN interface found", snap.LastError)
}

func TestOptionalFailuresDegrade(t *testing.T) {
	f := newFixture()
	f.dhcp.err = errors.Wrap(dhcp.ErrDependencyUnavailable, "dnsmasq")
	f.mapper.err = errors.New("address already in use")
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Active)

	states := map[session.Resource]ResourceStatus{}
	for _, rs := range snap.Resources {
		states[rs.Resource] = rs
	}
	assert.Equal(t, session.Enabled, states[session.Forwarding].State)
	assert.Equal(t, session.Enabled, states[session.Firewall].State)
	assert.Equal(t, session.Degraded, states[session.DHCP].State)
	assert.Contains(t, states[session.DHCP].Reason, "dnsmasq")
	assert.Equal(t, session.Degraded, states[session.NATPMP].State)
	assert.Empty(t, snap.DHCPRange)
}

func TestTurnedOffResourcesAreSkipped(t *testing.T) {
	f := newFixture()
	f.opts.DHCP = false
	o := f.run(t)
	require.NoError(t, o.SetAutoStart(session.NATPMP, false))
	assert.Error(t, o.SetAutoStart(session.Firewall, false))

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Active)

	assert.Equal(t, []string{"forwarding on", "firewall apply utun3 en1"}, f.j.list())
	assert.Equal(t, session.Skipped, snap.Resources[session.DHCP].State)
	assert.Equal(t, session.Skipped, snap.Resources[session.NATPMP].State)
	assert.Equal(t, false, f.prefs.saved["natpmp.enabled"])
}

func TestRequiredFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.firewall.err = errors.New("pf rules not loaded")
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Stopping)
	snap := f.pub.waitFor(t, SelectingLan)

	assert.Contains(t, snap.LastError, "failed to enable firewall")
	assert.Empty(t, snap.SessionID)
	assert.Equal(t, []string{
		"forwarding on",
		"firewall apply utun3 en1",
		"firewall flush",
		"forwarding restore",
	}, f.j.list())

	require.NoError(t, o.ConfirmLAN("en1"), "LAN can be chosen again")
}

func TestStopDuringStartIsQueued(t *testing.T) {
	f := newFixture()
	f.forwarding.release = make(chan struct{})
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Starting)
	require.NoError(t, o.Stop())

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.StopQueued)
	assert.Equal(t, Starting, snap.State)

	close(f.forwarding.release)
	f.pub.waitFor(t, Idle)

	assert.Equal(t, []string{"forwarding on", "forwarding restore"}, f.j.list())
}

func TestTimedOutStepIsReversed(t *testing.T) {
	f := newFixture()
	f.forwarding.release = make(chan struct{})
	f.opts.Timeouts = DefaultTimeouts()
	f.opts.Timeouts.Start = 50 * time.Millisecond
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Starting)
	time.Sleep(200 * time.Millisecond)

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Starting, snap.State, "the running step is awaited")
	assert.Empty(t, f.j.list(), "nothing is reversed while the step runs")

	close(f.forwarding.release)
	f.pub.waitFor(t, Stopping)
	snap = f.pub.waitFor(t, SelectingLan)

	assert.Contains(t, snap.LastError, "timed out")
	assert.Equal(t, []string{"forwarding on", "forwarding restore"}, f.j.list())
}

func TestLateOptionalStepIsKept(t *testing.T) {
	f := newFixture()
	f.opts.Timeouts = DefaultTimeouts()
	f.opts.Timeouts.NATPMP = 50 * time.Millisecond
	release := make(chan struct{})
	f.deps.NewPortMapper = func(*session.Session) PortMapper {
		return &slowMapper{fakeMapper: f.mapper, release: release}
	}
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Starting)
	time.Sleep(200 * time.Millisecond)
	close(release)
	snap := f.pub.waitFor(t, Active)

	assert.Equal(t, session.Enabled, snap.Resources[session.NATPMP].State)
}

func TestPanickingStepIsReversed(t *testing.T) {
	f := newFixture()
	f.forwarding.crash = "sysctl table corrupted"
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Stopping)
	snap := f.pub.waitFor(t, SelectingLan)

	assert.Contains(t, snap.LastError, "panicked")
	assert.Contains(t, snap.LastError, "sysctl table corrupted")
	assert.Equal(t, []string{"forwarding restore"}, f.j.list())
}

func TestShutdownDuringRollback(t *testing.T) {
	f := newFixture()
	f.firewall.err = errors.New("pf rules not loaded")
	f.firewall.removeRelease = make(chan struct{})
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Stopping)

	done := make(chan error, 1)
	go func() {
		done <- o.Shutdown()
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.firewall.removeRelease)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not return")
	}
	f.pub.waitFor(t, Idle)
	assert.Equal(t, []string{
		"forwarding on",
		"firewall apply utun3 en1",
		"firewall flush",
		"forwarding restore",
	}, f.j.list())
}

func TestStopActiveSession(t *testing.T) {
	f := newFixture()
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Active)
	require.NoError(t, o.Stop())

	var snap Snapshot
	stopping := 0
	timeout := time.After(3 * time.Second)
	for snap.State != Idle {
		select {
		case ev := <-f.pub.states:
			snap = ev.Snapshot
			if ev.State == Stopping {
				stopping++
				for _, rs := range ev.Snapshot.Resources {
					assert.NotEqual(t, session.Degraded, rs.State, "%s reported as stopped unexpectedly", rs.Resource)
				}
			}
		case <-timeout:
			t.Fatal("session not stopped")
		}
	}

	assert.Equal(t, 1, stopping)
	assert.Empty(t, snap.LastError)
	assert.Empty(t, snap.Resources)
	assert.Equal(t, []string{"natpmp stop", "dhcp stop", "firewall flush", "forwarding restore"}, f.j.list()[4:])

	require.NoError(t, o.Start(), "a new session can be started")
	f.pub.waitFor(t, Active)
}

func TestShutdownTeardownOrder(t *testing.T) {
	f := newFixture()
	f.dhcp.err = errors.New("dnsmasq exited on start")
	o := New(f.deps, f.opts)
	go o.Run()

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Active)

	require.NoError(t, o.Shutdown())
	<-o.Done()

	assert.Equal(t, []string{"natpmp stop", "dhcp stop", "firewall flush", "forwarding restore"}, f.j.list()[4:])
	assert.NoError(t, o.Shutdown(), "second shutdown is a no-op")
	assert.Equal(t, ErrClosed, o.Start())
	assert.Len(t, f.j.list(), 8)
}

func TestEditDNS(t *testing.T) {
	f := newFixture()
	f.opts.AutoSelect = false
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, SelectingVpn)
	require.NoError(t, o.ConfirmVPN("utun3"))
	f.pub.waitFor(t, SelectingLan)

	require.NoError(t, o.EditDNS())
	f.pub.waitFor(t, EditingDns)
	assert.Error(t, o.CommitDNS("not-an-ip"))
	require.NoError(t, o.CommitDNS("quad9"))
	snap := f.pub.waitFor(t, SelectingLan)

	assert.Equal(t, dns.SourceCustom, snap.DNSSource)
	assert.Equal(t, "9.9.9.9", snap.DNS.Custom.String())
	assert.Equal(t, "9.9.9.9", f.prefs.saved["dns.custom"])

	require.NoError(t, o.ConfirmLAN("en1"))
	f.pub.waitFor(t, Active)
	assert.Equal(t, []string{"9.9.9.9"}, f.dhcp.opts.DNS)

	require.NoError(t, o.EditDNS())
	require.NoError(t, o.CommitDNS("auto"))
	snap = f.pub.waitFor(t, Active)
	assert.Equal(t, dns.SourceVPN, snap.DNSSource)
	assert.NotContains(t, f.prefs.saved, "dns.custom")

	require.NoError(t, o.EditDNS())
	require.NoError(t, o.CancelDNS())
	f.pub.waitFor(t, Active)
}

func TestCrashedResourceDegrades(t *testing.T) {
	f := newFixture()
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Active)

	f.mapper.crash(errors.New("use of closed network connection"))
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-f.pub.states:
			rs := ev.Snapshot.Resources[session.NATPMP]
			if rs.State == session.Degraded {
				assert.Equal(t, "use of closed network connection", rs.Reason)
				assert.Equal(t, Active, ev.State)
				return
			}
		case <-timeout:
			t.Fatal("NAT-PMP failure not reported")
		}
	}
}

func TestHealthIsCheckedPeriodically(t *testing.T) {
	f := newFixture()
	mock := clock.NewMock()
	f.opts.Clock = mock
	f.opts.HealthInterval = 10 * time.Second
	f.health.report = health.Report{Status: health.Degraded, Reason: "IP forwarding was disabled externally"}
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Active)
	mock.Add(10 * time.Second)

	select {
	case report := <-f.pub.health:
		assert.Equal(t, health.Degraded, report.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("no health report")
	}

	snap, err := o.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.Health)
	assert.Equal(t, "IP forwarding was disabled externally", snap.Health.Reason)
}

// pfRunner keeps anchor contents the way pf does.
type pfRunner struct {
	mu      sync.Mutex
	j       *journal
	anchors map[string]string
	reject  bool
}

func (pf *pfRunner) Output(args ...string) (string, error) {
	return pf.OutputWithInput("", args...)
}

func (pf *pfRunner) OutputWithInput(input string, args ...string) (string, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	switch {
	case args[1] == "-E":
		return "Token : 42\n", nil
	case args[1] == "-X", args[1] == "-s":
		return "", nil
	case args[1] == "-a" && args[3] == "-f":
		if pf.reject {
			return "pfctl: Syntax error in config file: pf rules not loaded", errors.New("exit status 1")
		}
		pf.anchors[args[2]] = input
		return "", nil
	case args[1] == "-a" && args[3] == "-F":
		pf.j.add("flush " + args[2])
		delete(pf.anchors, args[2])
		return "", nil
	}
	return "", nil
}

func (pf *pfRunner) rules(anchor string) string {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	return pf.anchors[anchor]
}

func (pf *pfRunner) count() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	return len(pf.anchors)
}

func TestSharingWithRealComponents(t *testing.T) {
	f := newFixture()
	pf := &pfRunner{j: f.j, anchors: map[string]string{}}
	anchor := firewall.NewAnchor(pf, "com.apple/tunshare", nil)

	var server *natpmp.Server
	f.deps.Firewall = anchor
	f.deps.DHCP = dhcp.NewDelegate("/nonexistent/dnsmasq")
	f.deps.NewPortMapper = func(s *session.Session) PortMapper {
		opts := natpmp.DefaultOptions(s.VPN.Name, s.LAN.Name, s.LANAddr)
		opts.Port = 0
		opts.NewAnnouncer = nil
		opts.ExternalIP = func() (net.IP, error) { return net.IPv4(10, 8, 0, 6), nil }
		opts.Rules = anchor.Sub("natpmp")
		server = natpmp.New(opts)
		return server
	}
	o := f.run(t)

	require.NoError(t, o.Start())
	snap := f.pub.waitFor(t, Active)

	assert.Equal(t, session.Enabled, snap.Resources[session.Forwarding].State)
	assert.Contains(t, pf.rules("com.apple/tunshare"), "nat on utun3 inet from en1:network to any -> (utun3)")
	assert.Equal(t, session.Degraded, snap.Resources[session.DHCP].State)
	assert.Contains(t, snap.Resources[session.DHCP].Reason, "not found")
	require.Equal(t, session.Enabled, snap.Resources[session.NATPMP].State)

	conn, err := net.DialUDP("udp4", nil, server.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	req := []byte{0, byte(natpmp.OpMapUDP), 0, 0, 0x13, 0x88, 0, 0, 0, 0, 0x0e, 0x10}
	_, err = conn.Write(req)
	require.NoError(t, err)
	resp := make([]byte, 16)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	require.Equal(t, 16, n)

	assert.Equal(t, byte(natpmp.OpMapUDP)+128, resp[1])
	assert.Equal(t, uint16(natpmp.ResultSuccess), binary.BigEndian.Uint16(resp[2:4]))
	assert.Equal(t, uint16(5000), binary.BigEndian.Uint16(resp[8:10]))
	assert.NotZero(t, binary.BigEndian.Uint16(resp[10:12]))
	assert.Equal(t, uint32(3600), binary.BigEndian.Uint32(resp[12:16]))

	require.NoError(t, o.Shutdown())
	assert.Zero(t, pf.count(), "no anchor content left behind")
	var flushes []string
	for _, e := range f.j.list() {
		if strings.HasPrefix(e, "flush") || strings.HasPrefix(e, "forwarding") {
			flushes = append(flushes, e)
		}
	}
	assert.Equal(t, []string{"forwarding on", "flush com.apple/tunshare.natpmp", "flush com.apple/tunshare", "forwarding restore"}, flushes)
}

func TestRejectedRulesLeaveNothingBehind(t *testing.T) {
	f := newFixture()
	pf := &pfRunner{j: f.j, anchors: map[string]string{}, reject: true}
	f.deps.Firewall = firewall.NewAnchor(pf, "com.apple/tunshare", nil)
	o := f.run(t)

	require.NoError(t, o.Start())
	f.pub.waitFor(t, Stopping)
	snap := f.pub.waitFor(t, SelectingLan)

	assert.Contains(t, snap.LastError, "failed to enable firewall")
	assert.Zero(t, pf.count())
	assert.Equal(t, "forwarding restore", f.j.list()[len(f.j.list())-1])
}
