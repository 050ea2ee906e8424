package socketpool

import (
	"DDSSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/log"
	"golang.org/x/net/ipv4"
)

// MulticastOpener binds a UDP socket to the wildcard address on the endpoint's
// port, with address reuse, and joins the endpoint's group.
type MulticastOpener struct {
	// Interface to join on; nil lets the kernel pick.
	Interface *net.Interface
	// ReceiveBuffer sets SO_RCVBUF when positive.
	ReceiveBuffer int
	Logger        *log.Logger
}

// Open implements Opener.
func (o *MulticastOpener) Open(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: control}
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("", strconv.Itoa(ep.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %d: %w", ep.Port, err)
	}

	if o.ReceiveBuffer > 0 {
		if uc, ok := pc.(*net.UDPConn); ok {
			if err := uc.SetReadBuffer(o.ReceiveBuffer); err != nil && o.Logger != nil {
				o.Logger.Warn("Failed to set UDP receive buffer size", "endpoint", ep.String(), "size", o.ReceiveBuffer, "err", err)
			}
		}
	}

	p := ipv4.NewPacketConn(pc)
	group := &net.UDPAddr{IP: ep.Group}
	if err := p.JoinGroup(o.Interface, group); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to join group %s: %w", ep.Group, err)
	}

	return &groupConn{PacketConn: pc, p: p, ifi: o.Interface, group: group}, nil
}

// groupConn leaves its multicast group before closing.
type groupConn struct {
	net.PacketConn
	p     *ipv4.PacketConn
	ifi   *net.Interface
	group net.Addr
}

func (c *groupConn) Close() error {
	leaveErr := c.p.LeaveGroup(c.ifi, c.group)
	return errors.Join(leaveErr, c.PacketConn.Close())
}
