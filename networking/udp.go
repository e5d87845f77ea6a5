package networking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"smfsp/config"
	"smfsp/constants"

	"golang.org/x/net/ipv4"
)

// UDPTransport multiplexes the unicast and broadcast sockets of a node into
// a single ordered stream of datagrams.
type UDPTransport struct {
	cfg      *config.Config
	conn     *net.UDPConn
	conns    []*net.UDPConn
	incoming chan *Datagram
	closed   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// ListenUDP binds the sockets described by cfg and starts reading from them
func ListenUDP(cfg *config.Config) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp4", cfg.BindTo())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("could not bind %s: %w", cfg.BindTo(), err)
	}

	t := &UDPTransport{
		cfg:      cfg,
		conn:     conn,
		conns:    []*net.UDPConn{conn},
		incoming: make(chan *Datagram, constants.INCOMING_QUEUE),
		closed:   make(chan struct{}),
	}

	// Set DSCP. NOTE: On Windows by default it will not apply the value.
	if cfg.DSCP > 0 {
		if err := ipv4.NewPacketConn(conn).SetTOS(cfg.DSCP); err != nil {
			cfg.Logf("Could not set DSCP %d: %v", cfg.DSCP, err)
		}
	}

	// A socket bound to a specific address does not see broadcasts.
	if !laddr.IP.IsUnspecified() {
		port := conn.LocalAddr().(*net.UDPAddr).Port
		baddr := &net.UDPAddr{IP: net.ParseIP(cfg.Broadcast), Port: port}
		bconn, err := net.ListenUDP("udp4", baddr)
		if err != nil {
			cfg.Logf("Broadcast socket %s not bound, only unicast traffic will be received: %v", baddr, err)
		} else {
			cfg.Debugf("Broadcast socket bound to %s", baddr)
			t.conns = append(t.conns, bconn)
		}
	}

	for _, c := range t.conns {
		t.wg.Add(1)
		go t.read(c)
	}
	cfg.Debugf("Listening on %s", conn.LocalAddr())
	return t, nil
}

// LocalAddr returns the address of the unicast socket
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo sends b from the unicast socket
func (t *UDPTransport) SendTo(b []byte, to *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(b, to)
	return err
}

// Receive waits for the next datagram from any socket
func (t *UDPTransport) Receive(ctx context.Context, timeout time.Duration) (*Datagram, error) {
	if timeout <= 0 {
		select {
		case d := <-t.incoming:
			return d, nil
		case <-t.closed:
			return nil, net.ErrClosed
		default:
			return nil, ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-t.incoming:
		return d, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, net.ErrClosed
	}
}

// Close closes all sockets and waits for the readers to exit
func (t *UDPTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		for _, c := range t.conns {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		t.wg.Wait()
	})
	return err
}

// read copies every datagram from conn into the shared queue
func (t *UDPTransport) read(conn *net.UDPConn) {
	defer t.wg.Done()
	buf := make([]byte, constants.RECV_BUFFER_SIZE)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-t.closed:
				return
			default:
			}
			t.cfg.Debugf("Read from %s failed: %v", conn.LocalAddr(), err)
			time.Sleep(time.Millisecond)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case t.incoming <- &Datagram{Data: data, From: from}:
		case <-t.closed:
			return
		}
	}
}
