package probe

import (
	"context"
	"fmt"
	"net"
)

type tcpProber struct {
	address string
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

// TCP returns a Prober that is ready once address accepts connections.
func TCP(address string) Prober {
	return &tcpProber{
		address: address,
		dialer:  (&net.Dialer{}).DialContext,
	}
}

func (p *tcpProber) Probe(ctx context.Context) error {
	conn, err := p.dialer(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.address, err)
	}
	return conn.Close()
}
