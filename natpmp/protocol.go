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
	"encoding/binary"
	"net"
)

const (
	// Version is the only protocol version served.
	Version = 0
	// Port is the server port.
	Port = 5351
	// ClientPort receives unsolicited announcements.
	ClientPort = 5350

	responseFlag = 128
)

// MulticastGroup is the all-hosts group announcements are sent to.
var MulticastGroup = net.IPv4(224, 0, 0, 1)

// Opcode is a request operation.
type Opcode uint8

const (
	// OpExternalAddress asks for the public address of the gateway.
	OpExternalAddress Opcode = 0
	// OpMapUDP creates, renews or deletes a UDP mapping.
	OpMapUDP Opcode = 1
	// OpMapTCP creates, renews or deletes a TCP mapping.
	OpMapTCP Opcode = 2
)

// ResultCode is the status of a response.
type ResultCode uint16

const (
	// ResultSuccess request served.
	ResultSuccess ResultCode = 0
	// ResultUnsupportedVersion request version is not 0.
	ResultUnsupportedVersion ResultCode = 1
	// ResultRefused request is malformed or not allowed.
	ResultRefused ResultCode = 2
	// ResultNetworkFailure gateway has no external address.
	ResultNetworkFailure ResultCode = 3
	// ResultOutOfResources no external port left.
	ResultOutOfResources ResultCode = 4
	// ResultUnsupportedOpcode request opcode is unknown.
	ResultUnsupportedOpcode ResultCode = 5
)

// Protocol is the transport of a mapping.
type Protocol string

const (
	// UDP mapping.
	UDP = Protocol("udp")
	// TCP mapping.
	TCP = Protocol("tcp")
)

func (op Opcode) protocol() Protocol {
	if op == OpMapTCP {
		return TCP
	}
	return UDP
}

// Request is a decoded client packet.
type Request struct {
	Version      uint8
	Opcode       Opcode
	InternalPort uint16
	ExternalPort uint16
	Lifetime     uint32
	// Short is set for mapping requests which do not carry all fields.
	Short bool
}

// ParseRequest decodes a request. Packets shorter than the common header
// and packets with the response bit set are reported as not ok.
func ParseRequest(b []byte) (req Request, ok bool) {
	if len(b) < 2 || b[1]&responseFlag != 0 {
		return req, false
	}
	req.Version = b[0]
	req.Opcode = Opcode(b[1])
	if req.Opcode != OpMapUDP && req.Opcode != OpMapTCP {
		return req, true
	}
	if len(b) < 12 {
		req.Short = true
		return req, true
	}
	req.InternalPort = binary.BigEndian.Uint16(b[4:6])
	req.ExternalPort = binary.BigEndian.Uint16(b[6:8])
	req.Lifetime = binary.BigEndian.Uint32(b[8:12])
	return req, true
}

// Response is an encoded server answer.
type Response struct {
	Opcode Opcode
	Result ResultCode
	// Epoch is seconds since start of epoch of the server.
	Epoch        uint32
	ExternalIP   net.IP
	InternalPort uint16
	ExternalPort uint16
	Lifetime     uint32
}

// Marshal encodes the response. Unsupported version and opcode answers carry
// only the common header, like the RFC 6886 error format.
func (r Response) Marshal() []byte {
	size := 8
	switch {
	case r.Result == ResultUnsupportedVersion || r.Result == ResultUnsupportedOpcode:
	case r.Opcode == OpExternalAddress:
		size = 12
	case r.Opcode == OpMapUDP || r.Opcode == OpMapTCP:
		size = 16
	}

	b := make([]byte, size)
	b[0] = Version
	b[1] = byte(r.Opcode) + responseFlag
	binary.BigEndian.PutUint16(b[2:4], uint16(r.Result))
	binary.BigEndian.PutUint32(b[4:8], r.Epoch)
	switch size {
	case 12:
		if ip := r.ExternalIP.To4(); ip != nil {
			copy(b[8:12], ip)
		}
	case 16:
		binary.BigEndian.PutUint16(b[8:10], r.InternalPort)
		binary.BigEndian.PutUint16(b[10:12], r.ExternalPort)
		binary.BigEndian.PutUint32(b[12:16], r.Lifetime)
	}
	return b
}

// announcement is the unsolicited external address response.
func announcement(epoch uint32, ip net.IP) []byte {
	return Response{Opcode: OpExternalAddress, Epoch: epoch, ExternalIP: ip}.Marshal()
}
