// Package driver is a reference UDP transport for wgcore.Sessions: it
// owns the socket and the read/tick loops the sans-I/O core
// deliberately does not. A real deployment can ignore this package
// entirely and wire Sessions into its own I/O stack.
//
// Grounded on the teacher's client/server UDP loop shape (bind once,
// read loop hands datagrams to session logic, separate goroutine
// drives periodic maintenance) generalized from TunGo's single-peer
// client to wgcore's multi-peer Sessions.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"

	"wgcore"
	"wgcore/internal/peer"
	"wgcore/wglog"
)

// Clock abstracts time.Now so tests can supply a deterministic one.
type Clock func() time.Time

// Driver binds a UDP socket and drives a wgcore.Sessions's
// RecvMessage/SendMessage/Tick loop over it.
type Driver struct {
	conn   *net.UDPConn
	engine *wgcore.Sessions
	log    wglog.Logger
	clock  Clock

	handshakes singleflight.Group

	tickInterval time.Duration

	closeOnce sync.Once
}

// Options configures optional Driver behavior.
type Options struct {
	Logger       wglog.Logger
	Clock        Clock
	TickInterval time.Duration
	// ReusePort sets SO_REUSEPORT on the listening socket (Linux only),
	// letting several driver processes share one UDP port.
	ReusePort bool
}

// Listen binds addr (host:port, host may be empty for all interfaces)
// and returns a Driver ready to Run.
func Listen(addr string, engine *wgcore.Sessions, opts Options) (*Driver, error) {
	log := opts.Logger
	if log == nil {
		log = wglog.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	lc := net.ListenConfig{}
	if opts.ReusePort && runtime.GOOS == "linux" {
		lc.Control = reusePortControl
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("driver: listen %s: %w", addr, err)
	}
	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.New("driver: listener is not a UDP connection")
	}

	return &Driver{
		conn:         udpConn,
		engine:       engine,
		log:          log,
		clock:        clock,
		tickInterval: tick,
	}, nil
}

// reusePortControl sets SO_REUSEPORT on the raw socket before bind,
// letting multiple Driver processes load-balance one listen port —
// the standard Go idiom for exposing a setsockopt that net.ListenConfig
// has no portable field for.
func reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// LocalAddr returns the bound local address.
func (d *Driver) LocalAddr() net.Addr { return d.conn.LocalAddr() }

// Close releases the underlying socket.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() { err = d.conn.Close() })
	return err
}

// Run reads datagrams and drives the tick loop until ctx is canceled
// or the socket errors. It blocks; call it from its own goroutine.
func (d *Driver) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- d.readLoop() }()

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Close()
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ticker.C:
			d.runTick()
		}
	}
}

func (d *Driver) readLoop() error {
	buf := make([]byte, 65535)
	for {
		n, src, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		d.handle(buf[:n], src)
	}
}

func (d *Driver) handle(msg []byte, src *net.UDPAddr) {
	now := d.clock()
	in, err := d.engine.RecvMessage(msg, src, now)
	if err != nil {
		d.log.Printf("driver: recv from %s: %v", src, err)
		return
	}
	if in.Reply != nil {
		if _, err := d.conn.WriteToUDP(in.Reply, src); err != nil {
			d.log.Printf("driver: send reply to %s: %v", src, err)
		}
	}
}

func (d *Driver) runTick() {
	now := d.clock()
	for _, action := range d.engine.Tick(now) {
		ep, ok := action.Peer.Endpoint().(*net.UDPAddr)
		if !ok || ep == nil {
			continue
		}
		if _, err := d.conn.WriteToUDP(action.Bytes, ep); err != nil {
			d.log.Printf("driver: tick send to %s: %v", ep, err)
		}
	}
}

// SendTo seals payload for p and writes it to p's last known
// endpoint. If p has no usable session, the payload is not sent:
// SendTo instead writes a fresh Init to p's endpoint and returns the
// result of that send (nil once the Init is written). Concurrent
// InitiateHandshake calls for the same peer are deduplicated, so two
// goroutines racing to send to an unestablished peer only trigger one
// Init.
func (d *Driver) SendTo(p *peer.Peer, payload []byte) error {
	out, err := d.engine.SendMessage(p, payload, d.clock())
	if err == nil {
		ep, ok := p.Endpoint().(*net.UDPAddr)
		if !ok || ep == nil {
			return errors.New("driver: peer has no known endpoint")
		}
		_, err = d.conn.WriteToUDP(out, ep)
		return err
	}

	key := fmt.Sprintf("%p", p)
	_, err, _ = d.handshakes.Do(key, func() (interface{}, error) {
		init, ierr := d.engine.InitiateHandshake(p, d.clock())
		if ierr != nil {
			return nil, ierr
		}
		ep, ok := p.Endpoint().(*net.UDPAddr)
		if !ok || ep == nil {
			return nil, errors.New("driver: peer has no known endpoint")
		}
		_, werr := d.conn.WriteToUDP(init, ep)
		return nil, werr
	})
	return err
}
