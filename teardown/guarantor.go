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

package teardown

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tunshare/tunshare/session"
	"github.com/tunshare/tunshare/utils/actionstack"
)

// Order is the fixed teardown order.
var Order = []session.Resource{session.NATPMP, session.DHCP, session.Firewall, session.Forwarding}

// Observer is notified after each teardown step.
type Observer func(r session.Resource, err error)

// Guarantor reverses enabled sub-resources exactly once in the fixed order.
type Guarantor struct {
	mu       sync.Mutex
	runMu    sync.Mutex
	actions  map[session.Resource]actionstack.Action
	observer Observer
}

// NewGuarantor creates an empty teardown guarantor.
func NewGuarantor(observer Observer) *Guarantor {
	return &Guarantor{
		actions:  make(map[session.Resource]actionstack.Action),
		observer: observer,
	}
}

// Register sets the teardown action of the resource, replacing a previous one.
func (g *Guarantor) Register(r session.Resource, action actionstack.Action) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.actions[r] = action
}

// Forget drops the action of a resource which was already reversed.
func (g *Guarantor) Forget(r session.Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.actions, r)
}

// Pending returns registered resources in teardown order.
func (g *Guarantor) Pending() []session.Resource {
	g.mu.Lock()
	defer g.mu.Unlock()

	var res []session.Resource
	for _, r := range Order {
		if _, ok := g.actions[r]; ok {
			res = append(res, r)
		}
	}
	return res
}

// Run executes every registered action once in teardown order. Failing steps do not
// stop the rest. A second call without new registrations does nothing.
func (g *Guarantor) Run() error {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	g.mu.Lock()
	actions := g.actions
	g.actions = make(map[session.Resource]actionstack.Action)
	g.mu.Unlock()

	stack := actionstack.NewActionStack()
	for rank, r := range Order {
		if action, ok := actions[r]; ok {
			stack.Push(rank, r.String(), action)
		}
	}

	byName := make(map[string]session.Resource, len(Order))
	for _, r := range Order {
		byName[r.String()] = r
	}
	return stack.Run(func(name string, err error) {
		if err != nil {
			log.Error().Err(err).Msgf("Teardown of %s failed", name)
		} else {
			log.Info().Msgf("Teardown of %s done", name)
		}
		if g.observer != nil {
			g.observer(byName[name], err)
		}
	})
}

// Guard runs teardown if the calling goroutine panics and then re-panics.
// It must be deferred directly.
func (g *Guarantor) Guard() {
	if r := recover(); r != nil {
		log.Error().Msgf("Panic, reversing system changes: %v", r)
		if err := g.Run(); err != nil {
			log.Error().Err(err).Msg("Teardown after panic failed")
		}
		panic(r)
	}
}
