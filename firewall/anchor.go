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

package firewall

import (
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tunshare/tunshare/utils/cmdutil"
)

const pfctl = "/sbin/pfctl"

// ErrApply is returned when pf refuses to load a rule set.
var ErrApply = errors.New("firewall rules rejected")

var tokenRe = regexp.MustCompile(`Token\s*:\s*(\d+)`)

// Anchor manages rules inside a single pf anchor. Loading replaces the whole
// anchor content in one pfctl transaction, so a rejected rule set leaves the
// previous content in place.
type Anchor struct {
	runner    cmdutil.Runner
	name      string
	protected []*net.IPNet
	enablePF  bool

	mu    sync.Mutex
	rules string
	token string

	newBackOff func() backoff.BackOff
}

// NewAnchor creates the controller of the main NAT anchor. It holds a pf enable
// reference while rules are loaded.
func NewAnchor(runner cmdutil.Runner, name string, protected []*net.IPNet) *Anchor {
	return &Anchor{
		runner:     runner,
		name:       name,
		protected:  protected,
		enablePF:   true,
		newBackOff: defaultBackOff,
	}
}

// Sub returns a child anchor "<name>.<suffix>" sharing the runner. Child anchors
// rely on the parent's pf reference.
func (a *Anchor) Sub(suffix string) *Anchor {
	return &Anchor{
		runner:     a.runner,
		name:       a.name + "." + suffix,
		newBackOff: a.newBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	eback := backoff.NewExponentialBackOff()
	eback.InitialInterval = 100 * time.Millisecond
	eback.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(eback, 5)
}

// Name returns the anchor path.
func (a *Anchor) Name() string {
	return a.name
}

// Rules returns the rule text currently loaded by this controller.
func (a *Anchor) Rules() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.rules
}

// Apply loads the masquerade rule set for the interface pair, replacing the anchor content.
func (a *Anchor) Apply(vpn, lan string) error {
	return a.Load(RenderNAT(vpn, lan, a.protected))
}

// Load atomically replaces the anchor content with the rules.
func (a *Anchor) Load(rules string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rules == "" {
		return a.flush()
	}

	acquired := false
	if a.enablePF && a.token == "" {
		token, err := a.enable()
		if err != nil {
			return err
		}
		a.token = token
		acquired = true
	}

	err := a.retry(func() (string, error) {
		return a.runner.OutputWithInput(rules, pfctl, "-a", a.name, "-f", "-")
	})
	if err != nil {
		if acquired {
			a.release()
		}
		return errors.Wrapf(ErrApply, "anchor %s: %v", a.name, err)
	}

	a.rules = rules
	log.Info().Msgf("Firewall rules loaded into anchor %s", a.name)
	return nil
}

// Remove flushes the anchor and drops the pf enable reference. Removing an empty anchor succeeds.
func (a *Anchor) Remove() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.flush()
}

// Show returns rules pf holds in the anchor.
func (a *Anchor) Show() (string, error) {
	nat, err := a.runner.Output(pfctl, "-a", a.name, "-s", "nat")
	if err != nil {
		return "", errors.Wrapf(err, "could not read anchor %s", a.name)
	}
	filter, err := a.runner.Output(pfctl, "-a", a.name, "-s", "rules")
	if err != nil {
		return "", errors.Wrapf(err, "could not read anchor %s", a.name)
	}
	return strings.TrimSpace(nat + filter), nil
}

// Enabled reports if pf is running on the host.
func (a *Anchor) Enabled() (bool, error) {
	out, err := a.runner.Output(pfctl, "-s", "info")
	if err != nil {
		return false, errors.Wrap(err, "could not read pf status")
	}
	return strings.Contains(out, "Status: Enabled"), nil
}

func (a *Anchor) flush() error {
	err := a.retry(func() (string, error) {
		out, err := a.runner.Output(pfctl, "-a", a.name, "-F", "all")
		if err != nil && strings.Contains(out, "does not exist") {
			return out, nil
		}
		return out, err
	})
	if err != nil {
		return errors.Wrapf(err, "could not flush anchor %s", a.name)
	}
	if a.rules != "" {
		log.Info().Msgf("Firewall anchor %s flushed", a.name)
	}
	a.rules = ""
	a.release()
	return nil
}

func (a *Anchor) enable() (string, error) {
	out, err := a.runner.Output(pfctl, "-E")
	if err != nil {
		return "", errors.Wrap(err, "could not enable pf")
	}
	m := tokenRe.FindStringSubmatch(out)
	if m == nil {
		log.Warn().Msgf("pf enabled without a reference token: %s", out)
		return "", nil
	}
	return m[1], nil
}

func (a *Anchor) release() {
	if a.token == "" {
		return
	}
	if _, err := a.runner.Output(pfctl, "-X", a.token); err != nil {
		log.Warn().Err(err).Msg("Failed to release pf reference")
	}
	a.token = ""
}

// retry repeats pfctl while it reports a busy ruleset.
func (a *Anchor) retry(op func() (string, error)) error {
	return backoff.Retry(func() error {
		out, err := op()
		if err == nil {
			return nil
		}
		if isBusy(out) {
			log.Debug().Err(err).Msg("pf is busy, will try again")
			return err
		}
		return backoff.Permanent(err)
	}, a.newBackOff())
}

func isBusy(output string) bool {
	return strings.Contains(output, "Resource busy") || strings.Contains(output, "DIOCXBEGIN")
}
