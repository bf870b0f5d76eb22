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

package dns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustom(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    net.IP
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "auto", want: nil},
		{in: "cloudflare", want: net.IPv4(1, 1, 1, 1).To4()},
		{in: "Quad9", want: net.IPv4(9, 9, 9, 9).To4()},
		{in: " 10.0.0.53 ", want: net.IPv4(10, 0, 0, 53).To4()},
		{in: "::1", wantErr: true},
		{in: "dns.example", wantErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			ip, err := ParseCustom(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ip)
		})
	}
}

func TestEffectivePriority(t *testing.T) {
	choice := Choice{
		Custom: net.IPv4(1, 1, 1, 1).To4(),
		VPN:    []string{"10.8.0.1"},
		System: []string{"192.168.1.1"},
	}
	assert.Equal(t, []string{"1.1.1.1"}, choice.Effective())
	assert.Equal(t, SourceCustom, choice.Source())

	choice.Custom = nil
	assert.Equal(t, []string{"10.8.0.1"}, choice.Effective())
	assert.Equal(t, SourceVPN, choice.Source())

	choice.VPN = nil
	assert.Equal(t, []string{"192.168.1.1"}, choice.Effective())
	assert.Equal(t, SourceSystem, choice.Source())

	choice.System = nil
	assert.Nil(t, choice.Effective())
	assert.Equal(t, SourceNone, choice.Source())
}
