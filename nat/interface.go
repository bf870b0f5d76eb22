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

// Forwarding toggles the kernel IP forwarding flag.
type Forwarding interface {
	// Enable remembers the current value and switches forwarding on.
	Enable() error
	// Restore returns the flag to the value seen by the first Enable.
	Restore() error
	// Enabled reports the live value of the flag.
	Enabled() (bool, error)
}
