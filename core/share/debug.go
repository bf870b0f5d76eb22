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

package share

import (
	"context"

	"github.com/tunshare/tunshare/dhcp"
)

type anchorInspector interface {
	Name() string
	Show() (string, error)
	Enabled() (bool, error)
}

type forwardingReader interface {
	Enabled() (bool, error)
}

// Debug is the system state relevant to sharing, read from the host.
type Debug struct {
	PFEnabled  bool         `json:"pf_enabled"`
	Forwarding bool         `json:"forwarding"`
	Anchors    []AnchorInfo `json:"anchors"`
	Leases     []dhcp.Lease `json:"leases,omitempty"`
	Errors     []string     `json:"errors,omitempty"`
}

// AnchorInfo holds the rules loaded in a pf anchor.
type AnchorInfo struct {
	Name  string `json:"name"`
	Rules string `json:"rules"`
}

// Inspector reads debug information from the host.
type Inspector struct {
	Anchors    []anchorInspector
	Forwarding forwardingReader
	Leases     func() ([]dhcp.Lease, error)
}

// NewInspector creates inspector of the given anchors, the first one is also asked about pf status.
func NewInspector(fwd forwardingReader, leases func() ([]dhcp.Lease, error), anchors ...anchorInspector) *Inspector {
	return &Inspector{Anchors: anchors, Forwarding: fwd, Leases: leases}
}

// Collect gathers the debug information. Failures of single reads are listed in Errors.
func (i *Inspector) Collect(ctx context.Context) (Debug, error) {
	result := make(chan Debug, 1)
	go func() {
		result <- i.collect()
	}()

	select {
	case d := <-result:
		return d, nil
	case <-ctx.Done():
		return Debug{}, ctx.Err()
	}
}

func (i *Inspector) collect() Debug {
	var d Debug
	report := func(err error) {
		d.Errors = append(d.Errors, err.Error())
	}

	if i.Forwarding != nil {
		enabled, err := i.Forwarding.Enabled()
		if err != nil {
			report(err)
		}
		d.Forwarding = enabled
	}
	for idx, a := range i.Anchors {
		if idx == 0 {
			enabled, err := a.Enabled()
			if err != nil {
				report(err)
			}
			d.PFEnabled = enabled
		}
		rules, err := a.Show()
		if err != nil {
			report(err)
		}
		d.Anchors = append(d.Anchors, AnchorInfo{Name: a.Name(), Rules: rules})
	}
	if i.Leases != nil {
		leases, err := i.Leases()
		if err != nil {
			report(err)
		}
		d.Leases = leases
	}
	return d
}
