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
	"fmt"
	"time"

	"github.com/tunshare/tunshare/dns"
	"github.com/tunshare/tunshare/health"
	"github.com/tunshare/tunshare/natpmp"
	"github.com/tunshare/tunshare/network"
	"github.com/tunshare/tunshare/session"
)

const (
	// AppTopicState is published on every state change of the orchestrator.
	AppTopicState = "share:state"
	// AppTopicHealth is published after each health check of an active session.
	AppTopicHealth = "share:health"
)

// State of the orchestrator.
type State string

const (
	// Idle nothing is shared.
	Idle = State("Idle")
	// Detecting interfaces are being enumerated.
	Detecting = State("Detecting")
	// SelectingVpn waits for the VPN interface choice.
	SelectingVpn = State("SelectingVpn")
	// SelectingLan waits for the LAN interface choice.
	SelectingLan = State("SelectingLan")
	// Starting sub-resources are being enabled.
	Starting = State("Starting")
	// Active the session is running.
	Active = State("Active")
	// Stopping sub-resources are being reversed.
	Stopping = State("Stopping")
	// EditingDns the DNS choice is being edited.
	EditingDns = State("EditingDns")
)

// Op is the logical step a background task completes.
type Op string

const (
	// OpDetect enumerates interfaces.
	OpDetect = Op("detect")
	// OpDiscoverDNS discovers resolvers of the VPN.
	OpDiscoverDNS = Op("discover-dns")
	// OpEnable enables a single sub-resource.
	OpEnable = Op("enable")
	// OpStop reverses every enabled sub-resource.
	OpStop = Op("stop")
	// OpExit reports that a running sub-resource stopped on its own.
	OpExit = Op("exit")
	// OpHealth checks an active session.
	OpHealth = Op("health")
)

// Result is the outcome of a background task, delivered once to the control loop.
type Result struct {
	Op       Op
	Resource session.Resource
	Err      error

	seq     uint64
	session session.ID
	payload interface{}
	// overdue marks the timeout notice of a step which is still running.
	overdue bool
}

func (r Result) String() string {
	if r.Op == OpEnable || r.Op == OpExit {
		return fmt.Sprintf("%s %s", r.Op, r.Resource)
	}
	return string(r.Op)
}

// ResourceStatus is the lifecycle of a single sub-resource.
type ResourceStatus struct {
	Resource session.Resource  `json:"resource"`
	State    session.Lifecycle `json:"state"`
	Reason   string            `json:"reason,omitempty"`
}

// Snapshot is a read-only view of the orchestrator.
type Snapshot struct {
	State      State                `json:"state"`
	Pending    Op                   `json:"pending,omitempty"`
	StopQueued bool                 `json:"stop_queued,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	Interfaces []network.Descriptor `json:"interfaces,omitempty"`

	SessionID session.ID       `json:"session_id,omitempty"`
	VPN       string           `json:"vpn,omitempty"`
	LAN       string           `json:"lan,omitempty"`
	Gateway   string           `json:"gateway,omitempty"`
	DNS       dns.Choice       `json:"dns"`
	DNSSource dns.Source       `json:"dns_source"`
	Resources []ResourceStatus `json:"resources,omitempty"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	Health    *health.Report   `json:"health,omitempty"`
	Mappings  []natpmp.Mapping `json:"mappings,omitempty"`
	DHCPRange string           `json:"dhcp_range,omitempty"`
}

// AppEventState is published on AppTopicState.
type AppEventState struct {
	State    State
	Previous State
	Snapshot Snapshot
}
