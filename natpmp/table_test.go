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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(minPort, maxPort uint16) (*Table, *clock.Mock) {
	c := clock.NewMock()
	return NewTable(c, minPort, maxPort, 2*time.Hour), c
}

func key(proto Protocol, port uint16, client string) Key {
	return Key{Protocol: proto, InternalPort: port, Client: client}
}

func TestMapRenewKeepsPortAndResetsLease(t *testing.T) {
	table, c := newTable(1024, 65535)
	k := key(UDP, 5000, "192.168.2.10")

	first, code := table.Map(k, 0, 3600)
	require.Equal(t, ResultSuccess, code)
	c.Add(30 * time.Minute)

	second, code := table.Map(k, 0, 3600)
	require.Equal(t, ResultSuccess, code)

	assert.Equal(t, first.ExternalPort, second.ExternalPort)
	assert.Equal(t, c.Now().Add(time.Hour), second.Expires)
	assert.Len(t, table.List(), 1)
}

func TestMapRenewIgnoresNewSuggestion(t *testing.T) {
	table, _ := newTable(1024, 65535)
	k := key(TCP, 22, "192.168.2.10")

	first, _ := table.Map(k, 2222, 60)
	second, _ := table.Map(k, 3333, 60)

	assert.Equal(t, uint16(2222), first.ExternalPort)
	assert.Equal(t, uint16(2222), second.ExternalPort)
}

func TestMapAllocation(t *testing.T) {
	table, _ := newTable(1024, 65535)

	m, _ := table.Map(key(UDP, 5000, "192.168.2.10"), 0, 60)
	assert.Equal(t, uint16(1024), m.ExternalPort, "lowest free port without suggestion")

	m, _ = table.Map(key(UDP, 5001, "192.168.2.10"), 7000, 60)
	assert.Equal(t, uint16(7000), m.ExternalPort, "free suggestion is honoured")

	m, _ = table.Map(key(UDP, 5000, "192.168.2.11"), 7000, 60)
	assert.Equal(t, uint16(1025), m.ExternalPort, "taken suggestion falls back to lowest free")

	m, _ = table.Map(key(UDP, 80, "192.168.2.11"), 80, 60)
	assert.Equal(t, uint16(1026), m.ExternalPort, "privileged suggestion is out of range")

	m, _ = table.Map(key(TCP, 5000, "192.168.2.10"), 0, 60)
	assert.Equal(t, uint16(1024), m.ExternalPort, "protocols have separate port spaces")
}

func TestExternalPortsAreUnique(t *testing.T) {
	table, _ := newTable(2000, 2100)
	seen := map[uint16]bool{}
	for i := 0; i < 50; i++ {
		m, code := table.Map(key(TCP, uint16(3000+i), "192.168.2.10"), 2000, 60)
		require.Equal(t, ResultSuccess, code)
		assert.False(t, seen[m.ExternalPort], "port %d assigned twice", m.ExternalPort)
		seen[m.ExternalPort] = true
	}
}

func TestMapLifetimeIsClamped(t *testing.T) {
	table, _ := newTable(1024, 65535)

	m, _ := table.Map(key(UDP, 5000, "192.168.2.10"), 0, 100000)

	assert.Equal(t, uint32(7200), m.Lifetime)
}

func TestOutOfResources(t *testing.T) {
	table, _ := newTable(1024, 1025)
	table.Map(key(UDP, 1, "192.168.2.10"), 0, 60)
	table.Map(key(UDP, 2, "192.168.2.10"), 0, 60)

	_, code := table.Map(key(UDP, 3, "192.168.2.10"), 0, 60)

	assert.Equal(t, ResultOutOfResources, code)
}

func TestExpiredMappingIsNeverReturned(t *testing.T) {
	table, c := newTable(1024, 65535)
	k := key(UDP, 5000, "192.168.2.10")
	table.Map(k, 0, 60)

	c.Add(59 * time.Second)
	m, ok := table.Lookup(k)
	require.True(t, ok)
	assert.Equal(t, uint32(1), m.Remaining(c.Now()))

	c.Add(time.Second)
	_, ok = table.Lookup(k)
	assert.False(t, ok)
	assert.Empty(t, table.List())
}

func TestExpiredPortIsReclaimed(t *testing.T) {
	table, c := newTable(1024, 1024)
	table.Map(key(UDP, 5000, "192.168.2.10"), 0, 60)
	c.Add(time.Minute)

	m, code := table.Map(key(UDP, 6000, "192.168.2.11"), 0, 60)

	require.Equal(t, ResultSuccess, code)
	assert.Equal(t, uint16(1024), m.ExternalPort)
}

func TestMapAfterExpiryCreatesFreshLease(t *testing.T) {
	table, c := newTable(1024, 65535)
	k := key(UDP, 5000, "192.168.2.10")
	first, _ := table.Map(k, 0, 60)
	c.Add(2 * time.Minute)

	second, _ := table.Map(k, 0, 60)

	assert.Equal(t, c.Now(), second.Renewed)
	assert.True(t, second.Expires.After(first.Expires))
}

func TestSweep(t *testing.T) {
	table, c := newTable(1024, 65535)
	changes := 0
	table.OnChange(func() { changes++ })
	table.Map(key(UDP, 5000, "192.168.2.10"), 0, 60)
	table.Map(key(UDP, 5001, "192.168.2.10"), 0, 120)
	changes = 0

	c.Add(90 * time.Second)

	assert.Equal(t, 1, table.Sweep())
	assert.Equal(t, 0, table.Sweep())
	assert.Equal(t, 1, changes)
	assert.Len(t, table.List(), 1)
}

func TestDelete(t *testing.T) {
	table, _ := newTable(1024, 65535)
	k := key(TCP, 5000, "192.168.2.10")
	table.Map(k, 0, 60)

	assert.True(t, table.Delete(k))
	assert.False(t, table.Delete(k), "deleting an absent mapping is fine")
	_, ok := table.Lookup(k)
	assert.False(t, ok)
}

func TestDeleteClient(t *testing.T) {
	table, _ := newTable(1024, 65535)
	table.Map(key(TCP, 5000, "192.168.2.10"), 0, 60)
	table.Map(key(TCP, 5001, "192.168.2.10"), 0, 60)
	table.Map(key(UDP, 5000, "192.168.2.10"), 0, 60)
	table.Map(key(TCP, 5000, "192.168.2.11"), 0, 60)

	assert.Equal(t, 2, table.DeleteClient(TCP, "192.168.2.10"))

	left := table.List()
	require.Len(t, left, 2)
	assert.Equal(t, key(TCP, 5000, "192.168.2.11"), left[0].Key)
	assert.Equal(t, key(UDP, 5000, "192.168.2.10"), left[1].Key)
}
