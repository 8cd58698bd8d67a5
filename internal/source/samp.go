// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

/*
samp.go - SA-MP Query Client

Implements the SA-MP server query protocol: a single UDP datagram
exchange per query. The request is an 11-byte header ("SAMP", the
server's IPv4 address, the port in little-endian, and an opcode byte);
the server echoes the header and appends the payload.

Opcodes used here:
  - 'i' (info): password flag, online count, max players, hostname,
    gamemode, language
  - 'c' (client list): connected player names and scores

All integers are little-endian. Strings are length-prefixed (uint32 for
info fields, uint8 for player names).
*/

package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

const (
	sampHeaderLen = 11
	sampMagic     = "SAMP"

	// sampMaxPacket is generous: a full 'c' response for the protocol's
	// 100-player client list cap fits well under 4 KiB.
	sampMaxPacket = 4096

	opInfo       = 'i'
	opClientList = 'c'
)

// ServerInfo is the payload of an info query.
type ServerInfo struct {
	Passworded bool
	Players    int
	MaxPlayers int
	Hostname   string
	Gamemode   string
	Language   string
}

// PlayerEntry is one row of the client list: the in-game name and score.
type PlayerEntry struct {
	Name  string
	Score int
}

// SampClient queries one SA-MP server. It implements Source over the
// client list, using player names as entity identifiers.
type SampClient struct {
	addr    string
	timeout time.Duration
}

// NewSampClient creates a client for the given server address. The
// timeout bounds each datagram exchange when the context carries no
// earlier deadline.
func NewSampClient(host string, port int, timeout time.Duration) *SampClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &SampClient{
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: timeout,
	}
}

// FetchSnapshot implements Source: the set of connected player names at
// the time of the query.
func (c *SampClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	players, err := c.PlayerList(ctx)
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(players))
	for _, p := range players {
		entities = append(entities, p.Name)
	}
	return &Snapshot{Time: time.Now().UTC(), Entities: entities}, nil
}

// Info runs an info query against the server.
func (c *SampClient) Info(ctx context.Context) (*ServerInfo, error) {
	payload, err := c.query(ctx, opInfo)
	if err != nil {
		return nil, err
	}

	r := &packetReader{buf: payload}
	info := &ServerInfo{
		Passworded: r.u8() != 0,
		Players:    int(r.u16()),
		MaxPlayers: int(r.u16()),
		Hostname:   r.str32(),
		Gamemode:   r.str32(),
		Language:   r.str32(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: info payload: %v", ErrProtocol, r.err)
	}
	return info, nil
}

// PlayerList runs a client-list query against the server.
func (c *SampClient) PlayerList(ctx context.Context) ([]PlayerEntry, error) {
	payload, err := c.query(ctx, opClientList)
	if err != nil {
		return nil, err
	}

	r := &packetReader{buf: payload}
	count := int(r.u16())
	players := make([]PlayerEntry, 0, count)
	for i := 0; i < count; i++ {
		players = append(players, PlayerEntry{
			Name:  r.str8(),
			Score: int(r.i32()),
		})
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: client list payload: %v", ErrProtocol, r.err)
	}
	return players, nil
}

// query performs one datagram exchange and returns the response payload
// with the echoed header stripped and validated.
func (c *SampClient) query(ctx context.Context, opcode byte) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, c.addr, err)
	}
	defer conn.Close() //nolint:errcheck // read-side close on a datagram socket

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", ErrUnavailable, err)
	}

	udpAddr, ok := conn.RemoteAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected remote address %T", ErrUnavailable, conn.RemoteAddr())
	}
	req, err := buildQuery(udpAddr, opcode)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("%w: send query: %v", ErrUnavailable, err)
	}

	buf := make([]byte, sampMaxPacket)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if n < sampHeaderLen || string(buf[:4]) != sampMagic {
		return nil, fmt.Errorf("%w: short or unrecognized response (%d bytes)", ErrProtocol, n)
	}
	if buf[sampHeaderLen-1] != opcode {
		return nil, fmt.Errorf("%w: opcode %q echoed as %q", ErrProtocol, opcode, buf[sampHeaderLen-1])
	}
	return buf[sampHeaderLen:n], nil
}

// buildQuery assembles the 11-byte request header for the resolved
// server address.
func buildQuery(addr *net.UDPAddr, opcode byte) ([]byte, error) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: server address %s is not IPv4", ErrUnavailable, addr)
	}

	req := make([]byte, 0, sampHeaderLen)
	req = append(req, sampMagic...)
	req = append(req, ip4...)
	req = append(req, byte(addr.Port&0xFF), byte(addr.Port>>8))
	req = append(req, opcode)
	return req, nil
}

// packetReader decodes little-endian fields from a response payload.
// The first decode error sticks; callers check err once after reading.
type packetReader struct {
	buf []byte
	off int
	err error
}

func (r *packetReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("truncated at offset %d (need %d of %d bytes)", r.off, n, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *packetReader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *packetReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *packetReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *packetReader) i32() int32 {
	return int32(r.u32())
}

// str8 reads a uint8 length-prefixed string (player names).
func (r *packetReader) str8() string {
	n := int(r.u8())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// str32 reads a uint32 length-prefixed string (info fields). Lengths
// beyond the packet size indicate a corrupt response.
func (r *packetReader) str32() string {
	n := r.u32()
	if r.err == nil && n > sampMaxPacket {
		r.err = fmt.Errorf("string length %d exceeds packet size", n)
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}
