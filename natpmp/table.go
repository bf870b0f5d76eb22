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
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Key identifies a mapping.
type Key struct {
	Protocol     Protocol
	InternalPort uint16
	Client       string
}

// Mapping is a port mapping lease.
type Mapping struct {
	Key
	ExternalPort uint16
	// Lifetime is the granted lease in seconds.
	Lifetime uint32
	Renewed  time.Time
	Expires  time.Time
}

// Remaining returns the lease seconds left at the moment.
func (m Mapping) Remaining(now time.Time) uint32 {
	if !now.Before(m.Expires) {
		return 0
	}
	return uint32((m.Expires.Sub(now) + time.Second - 1) / time.Second)
}

// Table holds the live mappings. Every method is safe for concurrent use.
type Table struct {
	clock       clock.Clock
	minPort     uint16
	maxPort     uint16
	maxLifetime uint32

	mu       sync.Mutex
	mappings map[Key]*Mapping
	ports    map[Protocol]map[uint16]Key
	onChange func()
}

// NewTable creates empty table allocating external ports from [minPort, maxPort].
func NewTable(c clock.Clock, minPort, maxPort uint16, maxLifetime time.Duration) *Table {
	return &Table{
		clock:       c,
		minPort:     minPort,
		maxPort:     maxPort,
		maxLifetime: uint32(maxLifetime / time.Second),
		mappings:    make(map[Key]*Mapping),
		ports: map[Protocol]map[uint16]Key{
			UDP: make(map[uint16]Key),
			TCP: make(map[uint16]Key),
		},
	}
}

// OnChange sets a callback invoked after the set of mappings changed. It is called
// with the table lock held and must not block.
func (t *Table) OnChange(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onChange = f
}

// Map creates or renews the mapping of the key. The key keeps its external port
// while alive; a new key gets the suggested port when it is free and in range,
// otherwise the lowest free port of the range.
func (t *Table) Map(key Key, suggested uint16, lifetime uint32) (Mapping, ResultCode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if lifetime > t.maxLifetime {
		lifetime = t.maxLifetime
	}

	if m, ok := t.mappings[key]; ok && now.Before(m.Expires) {
		m.Lifetime = lifetime
		m.Renewed = now
		m.Expires = now.Add(time.Duration(lifetime) * time.Second)
		return *m, ResultSuccess
	}
	expired := t.removeLocked(key)

	port, ok := t.allocateLocked(key.Protocol, suggested, now)
	if !ok {
		if expired {
			t.changedLocked()
		}
		return Mapping{}, ResultOutOfResources
	}

	m := &Mapping{
		Key:          key,
		ExternalPort: port,
		Lifetime:     lifetime,
		Renewed:      now,
		Expires:      now.Add(time.Duration(lifetime) * time.Second),
	}
	t.mappings[key] = m
	t.ports[key.Protocol][port] = key
	t.changedLocked()
	return *m, ResultSuccess
}

// Delete removes the mapping of the key. Deleting a missing mapping is not an error.
func (t *Table) Delete(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.removeLocked(key) {
		return false
	}
	t.changedLocked()
	return true
}

// DeleteClient removes every mapping of the client for the protocol.
func (t *Table) DeleteClient(protocol Protocol, client string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key := range t.mappings {
		if key.Protocol == protocol && key.Client == client {
			t.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		t.changedLocked()
	}
	return removed
}

// Lookup returns a live mapping of the key.
func (t *Table) Lookup(key Key) (Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.mappings[key]
	if !ok || !t.clock.Now().Before(m.Expires) {
		return Mapping{}, false
	}
	return *m, true
}

// Sweep deletes expired mappings.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	removed := 0
	for key, m := range t.mappings {
		if !now.Before(m.Expires) {
			t.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		t.changedLocked()
	}
	return removed
}

// List returns live mappings ordered by protocol and external port.
func (t *Table) List() []Mapping {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	res := make([]Mapping, 0, len(t.mappings))
	for _, m := range t.mappings {
		if now.Before(m.Expires) {
			res = append(res, *m)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Protocol != res[j].Protocol {
			return res[i].Protocol < res[j].Protocol
		}
		return res[i].ExternalPort < res[j].ExternalPort
	})
	return res
}

// Clear drops every mapping.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mappings = make(map[Key]*Mapping)
	for p := range t.ports {
		t.ports[p] = make(map[uint16]Key)
	}
}

func (t *Table) allocateLocked(protocol Protocol, suggested uint16, now time.Time) (uint16, bool) {
	if suggested >= t.minPort && suggested <= t.maxPort && t.freeLocked(protocol, suggested, now) {
		return suggested, true
	}
	for port := uint32(t.minPort); port <= uint32(t.maxPort); port++ {
		if t.freeLocked(protocol, uint16(port), now) {
			return uint16(port), true
		}
	}
	return 0, false
}

// freeLocked reports if the port is unused, reclaiming it from an expired mapping.
func (t *Table) freeLocked(protocol Protocol, port uint16, now time.Time) bool {
	key, ok := t.ports[protocol][port]
	if !ok {
		return true
	}
	if m := t.mappings[key]; now.Before(m.Expires) {
		return false
	}
	t.removeLocked(key)
	return true
}

func (t *Table) removeLocked(key Key) bool {
	m, ok := t.mappings[key]
	if !ok {
		return false
	}
	delete(t.mappings, key)
	delete(t.ports[key.Protocol], m.ExternalPort)
	return true
}

func (t *Table) changedLocked() {
	if t.onChange != nil {
		t.onChange()
	}
}
