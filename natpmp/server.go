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
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Options configures the server.
type Options struct {
	// LANInterface is the interface clients are attached to.
	LANInterface string
	// LANAddr is the gateway address on the LAN. The server binds to it and
	// serves only clients of its network.
	LANAddr net.IPNet
	// VPNInterface carries the mapped traffic.
	VPNInterface string
	// ExternalIP returns the address reported to clients.
	ExternalIP func() (net.IP, error)

	// Port to listen on, 0 picks a free one.
	Port            int
	MaxLifetime     time.Duration
	MinPort         uint16
	MaxPort         uint16
	SweepInterval   time.Duration
	RefreshInterval time.Duration

	Clock        clock.Clock
	NewAnnouncer func(conn net.PacketConn) (Announcer, error)
	// Rules receives redirect rules of live mappings, nil disables them.
	Rules RuleSink
}

// DefaultOptions returns options with protocol defaults for the interface pair.
func DefaultOptions(vpn, lan string, lanAddr net.IPNet) Options {
	return Options{
		LANInterface:    lan,
		LANAddr:         lanAddr,
		VPNInterface:    vpn,
		Port:            Port,
		MaxLifetime:     2 * time.Hour,
		MinPort:         1024,
		MaxPort:         65535,
		SweepInterval:   30 * time.Second,
		RefreshInterval: 60 * time.Second,
		Clock:           clock.New(),
		NewAnnouncer:    NewMulticastAnnouncer(lan),
	}
}

// Server is a NAT-PMP server bound to the LAN address.
type Server struct {
	opts    Options
	table   *Table
	network *net.IPNet
	syncer  *ruleSyncer

	mu      sync.Mutex
	conn    *net.UDPConn
	started time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	extMu        sync.Mutex
	external     net.IP
	stopAnnounce context.CancelFunc
	announcer    Announcer

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

// New creates a server which is not yet listening.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	mask := opts.LANAddr.Mask
	if ones, bits := mask.Size(); bits == 0 || ones == bits {
		mask = net.CIDRMask(24, 32)
	}
	network := &net.IPNet{IP: opts.LANAddr.IP.Mask(mask), Mask: mask}

	s := &Server{
		opts:    opts,
		table:   NewTable(opts.Clock, opts.MinPort, opts.MaxPort, opts.MaxLifetime),
		network: network,
		done:    make(chan struct{}),
	}
	if opts.Rules != nil {
		s.syncer = newRuleSyncer(opts.Rules, func() string {
			return RenderRedirects(opts.VPNInterface, s.table.List())
		})
		s.table.OnChange(s.syncer.notify)
	}
	return s
}

// Start binds the socket and starts serving.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("NAT-PMP server already started")
	}

	addr := &net.UDPAddr{IP: s.opts.LANAddr.IP, Port: s.opts.Port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return errors.Wrapf(err, "could not bind NAT-PMP socket %s", addr)
	}

	if s.opts.NewAnnouncer != nil {
		announcer, err := s.opts.NewAnnouncer(conn)
		if err != nil {
			log.Warn().Err(err).Msg("NAT-PMP announcements disabled")
		}
		s.extMu.Lock()
		s.announcer = announcer
		s.extMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.ctx = ctx
	s.cancel = cancel
	s.started = s.opts.Clock.Now()

	s.wg.Add(3)
	go s.serve(ctx, conn)
	go s.every(ctx, s.opts.SweepInterval, s.sweep)
	go s.every(ctx, s.opts.RefreshInterval, s.refreshExternal)
	if s.syncer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.syncer.run(ctx)
		}()
	}

	s.refreshExternal()
	log.Info().Msgf("NAT-PMP server listening on %s", conn.LocalAddr())
	return nil
}

// Stop closes the socket, drops every mapping and removes their redirect rules.
// Stopping a stopped server does nothing.
func (s *Server) Stop() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.conn = nil
	s.cancel()
	_ = conn.Close()
	s.mu.Unlock()

	s.wg.Wait()
	s.finish(nil)
	s.table.Clear()

	if s.opts.Rules != nil {
		if err := s.opts.Rules.Load(""); err != nil {
			return errors.Wrap(err, "could not flush NAT-PMP rules")
		}
	}
	log.Info().Msg("NAT-PMP server stopped")
	return nil
}

// Done is closed when the server stops, Err tells why.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err returns the socket error which stopped the server, nil after a regular Stop.
func (s *Server) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Addr returns the bound address, nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Mappings returns live mappings.
func (s *Server) Mappings() []Mapping {
	return s.table.List()
}

// ExternalIP returns the last known external address.
func (s *Server) ExternalIP() net.IP {
	s.extMu.Lock()
	defer s.extMu.Unlock()

	return s.external
}

func (s *Server) epoch() uint32 {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	return uint32(s.opts.Clock.Since(started) / time.Second)
}

func (s *Server) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *Server) serve(ctx context.Context, conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, 64)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("NAT-PMP socket failed")
			s.finish(errors.Wrap(err, "NAT-PMP socket failed"))
			s.mu.Lock()
			if s.cancel != nil {
				s.cancel()
			}
			s.mu.Unlock()
			return
		}
		if !s.network.Contains(src.IP) {
			log.Debug().Msgf("Ignoring NAT-PMP request from %s outside of %s", src, s.network)
			continue
		}

		resp := s.handle(buf[:n], src.IP)
		if resp == nil {
			continue
		}
		if _, err := conn.WriteToUDP(resp, src); err != nil {
			log.Warn().Err(err).Msgf("Failed to answer NAT-PMP client %s", src)
		}
	}
}

func (s *Server) handle(packet []byte, client net.IP) []byte {
	req, ok := ParseRequest(packet)
	if !ok {
		return nil
	}

	resp := Response{Opcode: req.Opcode, Epoch: s.epoch()}
	if req.Version != Version {
		resp.Result = ResultUnsupportedVersion
		return resp.Marshal()
	}

	switch req.Opcode {
	case OpExternalAddress:
		if ip := s.ExternalIP(); ip != nil {
			resp.ExternalIP = ip
		} else {
			resp.Result = ResultNetworkFailure
		}
	case OpMapUDP, OpMapTCP:
		s.handleMapping(req, client.String(), &resp)
	default:
		resp.Result = ResultUnsupportedOpcode
	}
	return resp.Marshal()
}

func (s *Server) handleMapping(req Request, client string, resp *Response) {
	if req.Short {
		resp.Result = ResultRefused
		return
	}

	proto := req.Opcode.protocol()
	resp.InternalPort = req.InternalPort
	key := Key{Protocol: proto, InternalPort: req.InternalPort, Client: client}

	switch {
	case req.Lifetime == 0 && req.InternalPort == 0:
		removed := s.table.DeleteClient(proto, client)
		log.Debug().Msgf("NAT-PMP removed %d %s mappings of %s", removed, proto, client)
	case req.InternalPort == 0:
		resp.Result = ResultRefused
	case req.Lifetime == 0:
		if s.table.Delete(key) {
			log.Debug().Msgf("NAT-PMP removed %s mapping %s:%d", proto, client, req.InternalPort)
		}
	case s.ExternalIP() == nil:
		resp.Result = ResultNetworkFailure
	default:
		m, code := s.table.Map(key, req.ExternalPort, req.Lifetime)
		resp.Result = code
		if code != ResultSuccess {
			log.Warn().Msgf("NAT-PMP could not map %s %s:%d: no free port", proto, client, req.InternalPort)
			return
		}
		resp.ExternalPort = m.ExternalPort
		resp.Lifetime = m.Lifetime
		log.Debug().Msgf("NAT-PMP mapped %s %d -> %s:%d for %ds", proto, m.ExternalPort, client, m.InternalPort, m.Lifetime)
	}
}

func (s *Server) every(ctx context.Context, interval time.Duration, f func()) {
	defer s.wg.Done()

	if interval <= 0 {
		return
	}
	ticker := s.opts.Clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f()
		}
	}
}

func (s *Server) sweep() {
	if removed := s.table.Sweep(); removed > 0 {
		log.Debug().Msgf("NAT-PMP expired %d mappings", removed)
	}
}

// refreshExternal reads the external address and announces it when it changed.
func (s *Server) refreshExternal() {
	if s.opts.ExternalIP == nil {
		return
	}
	ip, err := s.opts.ExternalIP()
	if err != nil {
		log.Warn().Err(err).Msg("Could not read external address")
		return
	}

	s.extMu.Lock()
	defer s.extMu.Unlock()

	if ip.Equal(s.external) {
		return
	}
	s.external = ip
	log.Info().Msgf("NAT-PMP external address %s", ip)

	if s.announcer == nil {
		return
	}
	if s.stopAnnounce != nil {
		s.stopAnnounce()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopAnnounce = cancel
	announcer := s.announcer
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		announceSchedule(ctx, s.opts.Clock, announcer, func() []byte {
			return announcement(s.epoch(), ip)
		})
	}()
}
