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
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/dhcp"
	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/health"
	"github.com/tunshare/tunshare/natpmp"
	"github.com/tunshare/tunshare/network"
	"github.com/tunshare/tunshare/session"
	"github.com/tunshare/tunshare/teardown"
)

var (
	// ErrInvalidState is returned for intents which do not apply to the current state.
	ErrInvalidState = errors.New("operation is not allowed in the current state")
	// ErrClosed is returned after the control loop exited.
	ErrClosed = errors.New("orchestrator is shut down")
)

type publisher interface {
	Publish(topic string, data interface{})
}

type interfaceDetector interface {
	Detect() ([]network.Descriptor, error)
}

type dnsDiscoverer interface {
	Discover(vpnInterface string) (dns.Choice, error)
}

type forwarding interface {
	Enable() error
	Restore() error
}

type firewallController interface {
	Apply(vpn, lan string) error
	Remove() error
}

type dhcpServer interface {
	Start(opts dhcp.Options) error
	Stop() error
	Exited() <-chan struct{}
}

type healthChecker interface {
	Check(target health.Target) health.Report
}

type preferences interface {
	SetUser(key string, value interface{})
	RemoveUser(key string)
	SaveUserConfig() error
}

type idGenerator interface {
	Generate() session.ID
}

// PortMapper is the NAT-PMP server of a session.
type PortMapper interface {
	Start() error
	Stop() error
	Done() <-chan struct{}
	Err() error
	Mappings() []natpmp.Mapping
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Publisher     publisher
	Interfaces    interfaceDetector
	DNS           dnsDiscoverer
	Forwarding    forwarding
	Firewall      firewallController
	DHCP          dhcpServer
	NewPortMapper func(s *session.Session) PortMapper
	Health        healthChecker
	Preferences   preferences
	Generator     idGenerator
	Guarantor     *teardown.Guarantor
}

// Timeouts bound every background task.
type Timeouts struct {
	Detect time.Duration
	DNS    time.Duration
	Start  time.Duration
	DHCP   time.Duration
	NATPMP time.Duration
	Stop   time.Duration
	Health time.Duration
}

// DefaultTimeouts returns timeouts of background tasks.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Detect: 10 * time.Second,
		DNS:    5 * time.Second,
		Start:  10 * time.Second,
		DHCP:   5 * time.Second,
		NATPMP: 5 * time.Second,
		Stop:   10 * time.Second,
		Health: 5 * time.Second,
	}
}

// Options of the orchestrator.
type Options struct {
	// VPN and LAN confirm the interface choice as soon as it is asked for.
	VPN string
	LAN string
	// AutoSelect picks interfaces which are not given explicitly.
	AutoSelect bool

	DHCP      bool
	NATPMP    bool
	CustomDNS net.IP
	LeaseTime time.Duration
	LeaseFile string

	HealthInterval time.Duration
	Timeouts       Timeouts
	Clock          clock.Clock
}

// Orchestrator sequences a sharing session. Intents and background results are
// handled one at a time by a single control loop which owns all the state.
type Orchestrator struct {
	deps  Deps
	opts  Options
	clock clock.Clock

	intents chan func()
	results chan Result
	done    chan struct{}
	ticker  *clock.Ticker

	state          State
	prevState      State
	afterStop      State
	interfaces     []network.Descriptor
	vpn            network.Descriptor
	choice         dns.Choice
	session        *session.Session
	mapper         PortMapper
	startedAt      time.Time
	seq            uint64
	inflight       uint64
	pending        Op
	stopQueued     bool
	shutdown       bool
	healthInflight bool
	report         *health.Report
	overdue        error
	lastErr        error
	stopErr        error
}

// New creates an idle orchestrator. Run must be called to process intents.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 10 * time.Second
	}
	if deps.Guarantor == nil {
		deps.Guarantor = teardown.NewGuarantor(nil)
	}
	if deps.Generator == nil {
		deps.Generator = &session.Generator{}
	}

	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		clock:   opts.Clock,
		intents: make(chan func()),
		results: make(chan Result),
		done:    make(chan struct{}),
		ticker:  opts.Clock.Ticker(opts.HealthInterval),
		state:   Idle,
		choice:  dns.Choice{Custom: opts.CustomDNS},
	}
}

// Run processes intents and results until Shutdown completes.
func (o *Orchestrator) Run() {
	defer close(o.done)
	defer o.ticker.Stop()
	defer o.deps.Guarantor.Guard()

	for {
		select {
		case intent := <-o.intents:
			intent()
		case res := <-o.results:
			o.apply(res)
		case <-o.ticker.C:
			o.checkHealth()
		}

		if o.shutdown && o.state == Idle && o.inflight == 0 {
			return
		}
	}
}

// Start begins a new session by detecting interfaces.
func (o *Orchestrator) Start() error {
	return o.do(func() error {
		if o.state != Idle {
			return o.invalid("start")
		}
		o.lastErr = nil
		o.setState(Detecting)
		o.pending = OpDetect
		o.inflight = o.dispatch(OpDetect, 0, o.opts.Timeouts.Detect, func() (interface{}, error) {
			return o.deps.Interfaces.Detect()
		})
		return nil
	})
}

// ConfirmVPN selects the VPN interface and discovers its resolvers.
func (o *Orchestrator) ConfirmVPN(name string) error {
	return o.do(func() error {
		return o.confirmVPN(name)
	})
}

// ConfirmLAN selects the LAN interface and starts sharing.
func (o *Orchestrator) ConfirmLAN(name string) error {
	return o.do(func() error {
		return o.confirmLAN(name)
	})
}

// EditDNS enters DNS editing from a state which waits for the user.
func (o *Orchestrator) EditDNS() error {
	return o.do(func() error {
		switch o.state {
		case Idle, SelectingVpn, SelectingLan, Active:
		default:
			return o.invalid("edit DNS")
		}
		if o.inflight != 0 {
			return o.invalid("edit DNS")
		}
		o.prevState = o.state
		o.setState(EditingDns)
		return nil
	})
}

// CommitDNS stores a custom DNS server, a preset name, or clears it with "" or "auto",
// and returns to the state DNS editing started from.
func (o *Orchestrator) CommitDNS(value string) error {
	return o.do(func() error {
		if o.state != EditingDns {
			return o.invalid("commit DNS")
		}
		custom, err := dns.ParseCustom(value)
		if err != nil {
			return err
		}

		o.choice.Custom = custom
		if o.session != nil {
			o.session.DNS.Custom = custom
			log.Info().Msg("DNS change applies to new DHCP leases after restarting the session")
		}
		if custom == nil {
			o.savePreference(config.FlagDNSCustom.Name, nil)
		} else {
			o.savePreference(config.FlagDNSCustom.Name, custom.String())
		}
		o.setState(o.prevState)
		return nil
	})
}

// CancelDNS leaves DNS editing without changes.
func (o *Orchestrator) CancelDNS() error {
	return o.do(func() error {
		if o.state != EditingDns {
			return o.invalid("cancel DNS editing")
		}
		o.setState(o.prevState)
		return nil
	})
}

// SetAutoStart turns an optional sub-resource on or off for the next session.
func (o *Orchestrator) SetAutoStart(r session.Resource, enabled bool) error {
	return o.do(func() error {
		switch r {
		case session.DHCP:
			o.opts.DHCP = enabled
			o.savePreference(config.FlagDHCPEnabled.Name, enabled)
		case session.NATPMP:
			o.opts.NATPMP = enabled
			o.savePreference(config.FlagNATPMPEnabled.Name, enabled)
		default:
			return errors.Errorf("%s cannot be turned off", r)
		}
		return nil
	})
}

// Stop ends the session. A stop during startup is honoured once the running step resolves.
func (o *Orchestrator) Stop() error {
	return o.do(func() error {
		o.stop()
		return nil
	})
}

// Snapshot returns the current view of the orchestrator.
func (o *Orchestrator) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := o.do(func() error {
		snap = o.snapshot()
		return nil
	})
	return snap, err
}

// Shutdown stops the session, waits for the control loop to exit and makes sure
// every registered teardown action ran.
func (o *Orchestrator) Shutdown() error {
	err := o.do(func() error {
		o.shutdown = true
		o.stop()
		return nil
	})
	if err != nil && err != ErrClosed {
		return err
	}
	<-o.done

	return multierr.Append(o.stopErr, o.deps.Guarantor.Run())
}

// Done is closed when the control loop exits.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) do(intent func() error) error {
	errCh := make(chan error, 1)
	select {
	case o.intents <- func() { errCh <- intent() }:
	case <-o.done:
		return ErrClosed
	}
	return <-errCh
}

func (o *Orchestrator) invalid(action string) error {
	return errors.Wrapf(ErrInvalidState, "cannot %s while %s", action, o.state)
}

func (o *Orchestrator) confirmVPN(name string) error {
	if o.state != SelectingVpn || o.inflight != 0 {
		return o.invalid("select VPN")
	}
	d, ok := network.Find(o.interfaces, name)
	if !ok {
		return errors.Errorf("interface %s not found", name)
	}
	if !d.Usable() {
		return errors.Errorf("interface %s is down or has no IPv4 address", name)
	}

	o.vpn = d
	o.pending = OpDiscoverDNS
	o.inflight = o.dispatch(OpDiscoverDNS, 0, o.opts.Timeouts.DNS, func() (interface{}, error) {
		return o.deps.DNS.Discover(name)
	})
	return nil
}

func (o *Orchestrator) confirmLAN(name string) error {
	if o.state != SelectingLan || o.inflight != 0 {
		return o.invalid("select LAN")
	}
	d, ok := network.Find(o.interfaces, name)
	if !ok {
		return errors.Errorf("interface %s not found", name)
	}
	if !d.Usable() {
		return errors.Errorf("interface %s is down or has no IPv4 address", name)
	}

	s, err := session.New(o.deps.Generator.Generate(), o.vpn, d, o.choice)
	if err != nil {
		return err
	}
	o.session = s
	o.startedAt = o.clock.Now()
	o.lastErr = nil
	log.Info().Msgf("Sharing %s with %s, session %s", s.VPN.Name, s.LAN.Name, s.ID)

	o.setState(Starting)
	o.enable(session.Forwarding)
	return nil
}

func (o *Orchestrator) stop() {
	switch o.state {
	case Idle, Stopping:
	case Detecting, SelectingVpn, SelectingLan:
		o.inflight = 0
		o.pending = ""
		o.interfaces = nil
		o.vpn = network.Descriptor{}
		o.setState(Idle)
	case EditingDns:
		o.state = o.prevState
		o.stop()
	case Starting:
		log.Info().Msg("Stop requested, waiting for the running step to finish")
		o.stopQueued = true
		o.publish(o.state)
	case Active:
		o.lastErr = nil
		o.beginStop(Idle)
	}
}

// enable issues the enable step of a resource. The teardown action is registered
// before the step runs, so a step which outlives its timeout is still reversed.
func (o *Orchestrator) enable(r session.Resource) {
	s := o.session
	timeout := o.opts.Timeouts.Start
	var work func() (interface{}, error)

	switch r {
	case session.Forwarding:
		o.deps.Guarantor.Register(r, o.deps.Forwarding.Restore)
		work = func() (interface{}, error) {
			return nil, o.deps.Forwarding.Enable()
		}
	case session.Firewall:
		o.deps.Guarantor.Register(r, o.deps.Firewall.Remove)
		vpn, lan := s.VPN.Name, s.LAN.Name
		work = func() (interface{}, error) {
			return nil, o.deps.Firewall.Apply(vpn, lan)
		}
	case session.DHCP:
		if !o.opts.DHCP || o.deps.DHCP == nil {
			o.skip(r)
			return
		}
		opts := dhcp.Options{
			Interface: s.LAN.Name,
			Gateway:   s.LANAddr,
			DNS:       s.DNS.Effective(),
			LeaseTime: o.opts.LeaseTime,
			LeaseFile: o.opts.LeaseFile,
		}
		o.deps.Guarantor.Register(r, o.deps.DHCP.Stop)
		timeout = o.opts.Timeouts.DHCP
		work = func() (interface{}, error) {
			return nil, o.deps.DHCP.Start(opts)
		}
	case session.NATPMP:
		if !o.opts.NATPMP || o.deps.NewPortMapper == nil {
			o.skip(r)
			return
		}
		mapper := o.deps.NewPortMapper(s)
		o.deps.Guarantor.Register(r, mapper.Stop)
		timeout = o.opts.Timeouts.NATPMP
		work = func() (interface{}, error) {
			return mapper, mapper.Start()
		}
	}

	log.Info().Msgf("Enabling %s", r)
	o.pending = OpEnable
	o.inflight = o.dispatch(OpEnable, r, timeout, work)
}

func (o *Orchestrator) skip(r session.Resource) {
	if err := o.session.MarkSkipped(r); err != nil {
		log.Error().Err(err).Msg("Session state")
	}
	log.Info().Msgf("Skipping %s, turned off", r)
	o.next(r)
}

func (o *Orchestrator) next(r session.Resource) {
	if o.stopQueued {
		o.beginStop(Idle)
		return
	}
	if r == session.NATPMP {
		o.setState(Active)
		return
	}
	o.enable(r + 1)
}

func (o *Orchestrator) beginStop(after State) {
	if o.stopQueued || o.shutdown {
		after = Idle
	}
	o.stopQueued = false
	o.afterStop = after
	o.setState(Stopping)

	o.pending = OpStop
	o.inflight = o.dispatch(OpStop, 0, o.opts.Timeouts.Stop, func() (interface{}, error) {
		return nil, o.deps.Guarantor.Run()
	})
}

// dispatch runs work in the background and delivers its result. Once the timeout
// passes, reads are failed right away while steps changing the host are reported
// overdue and their result is still awaited. A panicking work fails its result.
// The returned sequence number identifies the result.
func (o *Orchestrator) dispatch(op Op, r session.Resource, timeout time.Duration, work func() (interface{}, error)) uint64 {
	o.seq++
	base := Result{Op: op, Resource: r, seq: o.seq}
	if o.session != nil {
		base.session = o.session.ID
	}
	awaited := op == OpEnable || op == OpStop

	go func() {
		finished := make(chan Result, 1)
		go func() {
			res := base
			defer func() {
				if p := recover(); p != nil {
					log.Error().Msgf("Panic in %s: %v", base, p)
					res.payload = nil
					res.Err = errors.Errorf("%s panicked: %v", base, p)
				}
				finished <- res
			}()
			res.payload, res.Err = work()
		}()

		timer := o.clock.Timer(timeout)
		defer timer.Stop()

		var res Result
		select {
		case res = <-finished:
		case <-timer.C:
			res = base
			res.Err = errors.Errorf("%s timed out after %s", base, timeout)
			if awaited {
				res.overdue = true
				o.deliver(res)
				res = <-finished
			}
		}
		o.deliver(res)
	}()
	return o.seq
}

func (o *Orchestrator) deliver(res Result) {
	select {
	case o.results <- res:
	case <-o.done:
		log.Debug().Msgf("Dropping %s result after shutdown", res)
	}
}

func (o *Orchestrator) apply(res Result) {
	switch res.Op {
	case OpHealth:
		o.healthChecked(res)
		return
	case OpExit:
		o.exited(res)
		return
	}

	if res.seq != o.inflight {
		log.Debug().Msgf("Ignoring stale %s result", res)
		return
	}
	if res.overdue {
		o.overdue = res.Err
		log.Error().Err(res.Err).Msgf("Waiting for %s to finish", res)
		return
	}
	o.inflight = 0
	o.pending = ""
	if overdue := o.overdue; overdue != nil {
		o.overdue = nil
		res.Err = o.late(res, overdue)
	}

	switch res.Op {
	case OpDetect:
		o.detected(res)
	case OpDiscoverDNS:
		o.discovered(res)
	case OpEnable:
		o.enabled(res)
	case OpStop:
		o.stopped(res)
	}
}

// late decides the outcome of a step which finished after its timeout. A required
// resource counts as failed, an optional one keeps its real outcome.
func (o *Orchestrator) late(res Result, overdue error) error {
	if res.Op != OpEnable || !res.Resource.Required() {
		log.Warn().Msgf("%s finished after its timeout", res)
		return res.Err
	}
	if res.Err != nil {
		return multierr.Append(overdue, res.Err)
	}
	return overdue
}

func (o *Orchestrator) detected(res Result) {
	if res.Err != nil {
		o.fail(errors.Wrap(res.Err, "interface detection failed"), Idle)
		return
	}
	o.interfaces, _ = res.payload.([]network.Descriptor)
	o.setState(SelectingVpn)

	name := o.opts.VPN
	if name == "" && o.opts.AutoSelect {
		vpn, _, err := network.AutoSelect(o.interfaces)
		if err != nil {
			o.fail(err, Idle)
			return
		}
		name = vpn.Name
	}
	if name == "" {
		return
	}
	if err := o.confirmVPN(name); err != nil {
		o.fail(err, Idle)
	}
}

func (o *Orchestrator) discovered(res Result) {
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("DNS discovery failed")
	} else if choice, ok := res.payload.(dns.Choice); ok {
		choice.Custom = o.choice.Custom
		o.choice = choice
	}
	log.Info().Msgf("DNS for LAN clients: %v (%s)", o.choice.Effective(), o.choice.Source())
	o.setState(SelectingLan)

	name := o.opts.LAN
	if name == "" && o.opts.AutoSelect {
		_, lan, err := network.AutoSelect(o.interfaces)
		if err != nil {
			o.fail(err, Idle)
			return
		}
		name = lan.Name
	}
	if name == "" {
		return
	}
	if err := o.confirmLAN(name); err != nil {
		o.fail(err, Idle)
	}
}

func (o *Orchestrator) enabled(res Result) {
	r := res.Resource
	if res.Err != nil {
		if r.Required() {
			log.Error().Err(res.Err).Msgf("Failed to enable %s, reversing", r)
			o.lastErr = errors.Wrapf(res.Err, "failed to enable %s", r)
			o.beginStop(SelectingLan)
			return
		}
		log.Warn().Err(res.Err).Msgf("Failed to enable %s, continuing without it", r)
		if err := o.session.MarkDegraded(r, res.Err.Error()); err != nil {
			log.Error().Err(err).Msg("Session state")
		}
	} else {
		if err := o.session.MarkEnabled(r); err != nil {
			log.Error().Err(err).Msg("Session state")
		}
		log.Info().Msgf("Enabled %s", r)
		o.watch(r, res.payload)
	}
	o.publish(o.state)
	o.next(r)
}

// watch reports a sub-resource which stops on its own while the session is running.
func (o *Orchestrator) watch(r session.Resource, payload interface{}) {
	var exited <-chan struct{}
	var reason func() error

	switch r {
	case session.DHCP:
		exited = o.deps.DHCP.Exited()
		reason = func() error { return errors.New("dnsmasq exited") }
	case session.NATPMP:
		mapper, ok := payload.(PortMapper)
		if !ok {
			return
		}
		o.mapper = mapper
		exited = mapper.Done()
		reason = func() error {
			if err := mapper.Err(); err != nil {
				return err
			}
			return errors.New("NAT-PMP server stopped")
		}
	default:
		return
	}
	if exited == nil {
		return
	}

	id := o.session.ID
	go func() {
		defer o.deps.Guarantor.Guard()

		select {
		case <-exited:
		case <-o.done:
			return
		}
		o.deliver(Result{Op: OpExit, Resource: r, Err: reason(), session: id})
	}()
}

func (o *Orchestrator) exited(res Result) {
	s := o.session
	if s == nil || s.ID != res.session || s.State(res.Resource) != session.Enabled {
		return
	}
	if o.state == Stopping {
		return
	}
	log.Warn().Err(res.Err).Msgf("%s stopped unexpectedly", res.Resource)
	if err := s.MarkFailed(res.Resource, res.Err.Error()); err != nil {
		log.Error().Err(err).Msg("Session state")
	}
	o.publish(o.state)
}

func (o *Orchestrator) stopped(res Result) {
	if o.session != nil {
		for _, r := range teardown.Order {
			if err := o.session.MarkDisabled(r); err != nil {
				log.Error().Err(err).Msg("Session state")
			}
		}
	}
	if res.Err != nil {
		log.Error().Err(res.Err).Msg("Teardown incomplete")
		o.stopErr = multierr.Append(o.stopErr, res.Err)
		o.lastErr = multierr.Append(o.lastErr, errors.Wrap(res.Err, "teardown incomplete"))
	} else if o.session != nil {
		log.Info().Msgf("Session %s stopped", o.session.ID)
	}

	after := o.afterStop
	if o.shutdown {
		after = Idle
	}
	o.session = nil
	o.mapper = nil
	o.report = nil
	o.healthInflight = false
	if after == Idle {
		o.interfaces = nil
		o.vpn = network.Descriptor{}
	}
	o.setState(after)
}

func (o *Orchestrator) fail(err error, state State) {
	log.Error().Err(err).Msg("Sharing failed")
	o.lastErr = err
	if state == Idle {
		o.interfaces = nil
		o.vpn = network.Descriptor{}
	}
	o.setState(state)
}

func (o *Orchestrator) checkHealth() {
	s := o.session
	if s == nil || o.healthInflight || o.deps.Health == nil {
		return
	}
	if o.state != Active && !(o.state == EditingDns && o.prevState == Active) {
		return
	}

	target := health.Target{VPN: s.VPN.Name, DNS: s.DNS.Effective()}
	if s.State(session.NATPMP) == session.Enabled {
		target.Gateway = s.LANAddr.IP
	}
	o.healthInflight = true
	o.dispatch(OpHealth, 0, o.opts.Timeouts.Health, func() (interface{}, error) {
		return o.deps.Health.Check(target), nil
	})
}

func (o *Orchestrator) healthChecked(res Result) {
	o.healthInflight = false
	if o.session == nil || o.session.ID != res.session {
		return
	}

	report, ok := res.payload.(health.Report)
	if res.Err != nil || !ok {
		report = health.Report{Status: health.Degraded, Reason: fmt.Sprint(res.Err), CheckedAt: o.clock.Now()}
	}
	if o.report == nil || o.report.Status != report.Status {
		switch report.Status {
		case health.Healthy:
			log.Info().Msg("Sharing is healthy")
		default:
			log.Warn().Msgf("Sharing is %s: %s", report.Status, report.Reason)
		}
	}
	o.report = &report

	if o.deps.Publisher != nil {
		o.deps.Publisher.Publish(AppTopicHealth, report)
	}
}

func (o *Orchestrator) savePreference(key string, value interface{}) {
	prefs := o.deps.Preferences
	if prefs == nil {
		return
	}
	if value == nil {
		prefs.RemoveUser(key)
	} else {
		prefs.SetUser(key, value)
	}
	if err := prefs.SaveUserConfig(); err != nil {
		log.Warn().Err(err).Msg("Could not save preferences")
	}
}

func (o *Orchestrator) setState(state State) {
	prev := o.state
	o.state = state
	if prev != state {
		log.Debug().Msgf("Sharing state %s -> %s", prev, state)
	}
	o.publish(prev)
}

func (o *Orchestrator) publish(prev State) {
	if o.deps.Publisher == nil {
		return
	}
	o.deps.Publisher.Publish(AppTopicState, AppEventState{
		State:    o.state,
		Previous: prev,
		Snapshot: o.snapshot(),
	})
}

func (o *Orchestrator) snapshot() Snapshot {
	snap := Snapshot{
		State:      o.state,
		Pending:    o.pending,
		StopQueued: o.stopQueued,
		Interfaces: o.interfaces,
		VPN:        o.vpn.Name,
		DNS:        o.choice,
		DNSSource:  o.choice.Source(),
	}
	if o.lastErr != nil {
		snap.LastError = o.lastErr.Error()
	}
	if o.report != nil {
		report := *o.report
		snap.Health = &report
	}

	s := o.session
	if s == nil {
		return snap
	}
	snap.SessionID = s.ID
	snap.VPN = s.VPN.Name
	snap.LAN = s.LAN.Name
	snap.Gateway = s.LANAddr.IP.String()
	snap.DNS = s.DNS
	snap.DNSSource = s.DNS.Source()
	snap.StartedAt = o.startedAt
	for _, r := range session.Resources {
		snap.Resources = append(snap.Resources, ResourceStatus{Resource: r, State: s.State(r), Reason: s.Reason(r)})
	}
	if o.mapper != nil && s.State(session.NATPMP) == session.Enabled {
		snap.Mappings = o.mapper.Mappings()
	}
	if s.State(session.DHCP) == session.Enabled {
		if first, last, err := dhcp.Range(s.LANAddr); err == nil {
			snap.DHCPRange = fmt.Sprintf("%s - %s", first, last)
		}
	}
	return snap
}
