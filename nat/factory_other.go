//go:build !darwin && !linux

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

package nat

import "github.com/pkg/errors"

var errUnsupported = errors.New("IP forwarding control is not supported on this platform")

type unsupportedForward struct{}

// NewForwarding returns a toggle which always fails.
func NewForwarding() Forwarding {
	return unsupportedForward{}
}

func (unsupportedForward) Enable() error          { return errUnsupported }
func (unsupportedForward) Restore() error         { return nil }
func (unsupportedForward) Enabled() (bool, error) { return false, errUnsupported }
