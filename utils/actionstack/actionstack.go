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

package actionstack

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Action represents stackable action.
type Action func() error

// Visitor is notified about every executed action.
type Visitor func(name string, err error)

type entry struct {
	rank   int
	seq    int
	name   string
	action Action
}

// ActionStack is a stack of actions grouped by rank. Lower ranks are executed
// first, actions of the same rank are executed in reverse order they were added.
type ActionStack struct {
	mu      sync.Mutex
	runMu   sync.Mutex
	entries []entry
	seq     int
}

// NewActionStack creates empty ActionStack
func NewActionStack() *ActionStack {
	return new(ActionStack)
}

// Push adds new action with the given rank.
func (a *ActionStack) Push(rank int, name string, action Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	a.entries = append(a.entries, entry{rank: rank, seq: a.seq, name: name, action: action})
}

// Len returns number of pending actions.
func (a *ActionStack) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.entries)
}

// Run pops every pending action and executes it exactly once. A failing or
// panicking action does not prevent the rest from running, all errors are returned combined.
// Actions pushed while Run is executing are left for the next Run.
func (a *ActionStack) Run(visit Visitor) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.mu.Lock()
	entries := a.entries
	a.entries = nil
	a.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].rank != entries[j].rank {
			return entries[i].rank < entries[j].rank
		}
		return entries[i].seq > entries[j].seq
	})

	var result error
	for _, e := range entries {
		err := call(e)
		if visit != nil {
			visit(e.name, err)
		}
		result = multierr.Append(result, err)
	}
	return result
}

func call(e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", e.name, r)
		}
	}()
	return e.action()
}
