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

package port

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Range of ports, both ends included.
type Range struct {
	Start uint16
	End   uint16
}

// ParseRange parses "start:end".
func ParseRange(rangeString string) (Range, error) {
	bounds := strings.Split(strings.TrimSpace(rangeString), ":")
	if len(bounds) != 2 {
		return Range{}, errors.Errorf("invalid port range %q, start:end expected", rangeString)
	}
	start, err := strconv.ParseUint(bounds[0], 10, 16)
	if err != nil {
		return Range{}, errors.Wrap(err, "invalid range start")
	}
	end, err := strconv.ParseUint(bounds[1], 10, 16)
	if err != nil {
		return Range{}, errors.Wrap(err, "invalid range end")
	}
	if start == 0 || start > end {
		return Range{}, errors.Errorf("invalid port range %q", rangeString)
	}
	return Range{Start: uint16(start), End: uint16(end)}, nil
}

// Capacity returns number of ports in the range.
func (r Range) Capacity() int {
	return int(r.End) - int(r.Start) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}
