package network

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"inputrelay/internal/input"
	"inputrelay/internal/protocol"
)

const (
	// DefaultPort is the fixed port controllers send to, and the port
	// handshake replies are addressed to.
	DefaultPort = 19876

	// DefaultMaxDatagramSize bounds one received message
	DefaultMaxDatagramSize = 1024

	socketReadBuffer = 1 << 16
)

// decodeFunc is replaced in tests
var decodeFunc = protocol.Decode

// RelayConfig holds relay configuration
type RelayConfig struct {
	// Port to listen on, on all local addresses. 0 picks a free port.
	Port int

	// MouseSpeed multiplies every MouseMove displacement
	MouseSpeed float64

	// WheelSpeed multiplies every wheel step
	WheelSpeed float64

	// MaxDatagramSize is the receive buffer size; longer datagrams are truncated
	MaxDatagramSize int

	// Reply is the encoded handshake reply, built once per process
	Reply []byte

	Logger *zap.Logger
}

// Stats counts processed datagrams
type Stats struct {
	Received     uint64
	Dispatched   uint64
	DecodeErrors uint64
	Ignored      uint64
	HandleErrors uint64
}

// Relay receives controller datagrams on one UDP socket and forwards the
// decoded commands to an injector. Packets are handled one at a time in
// arrival order.
type Relay struct {
	cfg      RelayConfig
	injector input.Injector
	log      *zap.Logger

	sendTo func(b []byte, addr *net.UDPAddr) (int, error)

	received     atomic.Uint64
	dispatched   atomic.Uint64
	decodeErrors atomic.Uint64
	ignored      atomic.Uint64
	handleErrors atomic.Uint64

	// Ready is closed once the socket is bound, with Port set.
	Ready chan struct{}
	Port  int
}

// NewRelay creates a relay but does not bind it. Call Run to begin.
func NewRelay(cfg RelayConfig, injector input.Injector) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MouseSpeed == 0 {
		cfg.MouseSpeed = 1
	}
	if cfg.WheelSpeed == 0 {
		cfg.WheelSpeed = 1
	}
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = DefaultMaxDatagramSize
	}

	return &Relay{
		cfg:      cfg,
		injector: injector,
		log:      cfg.Logger.With(zap.String("component", "relay")),
		Ready:    make(chan struct{}),
	}
}

// Run binds the socket and serves until ctx is cancelled or the socket fails.
// A bind failure or an unexpectedly closed socket is returned as a
// *TransportError; cancellation returns nil.
func (r *Relay) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", r.cfg.Port)
	r.log.Info("Starting relay", zap.String("addr", addr))

	lc := net.ListenConfig{Control: controlSocket}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		r.log.Error("Failed to bind", zap.String("addr", addr), zap.Error(err))
		return &TransportError{Op: "bind", Err: err}
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()

	if err := conn.SetReadBuffer(socketReadBuffer); err != nil {
		r.log.Debug("Could not grow socket read buffer", zap.Error(err))
	}

	if r.sendTo == nil {
		r.sendTo = conn.WriteToUDP
	}
	r.Port = conn.LocalAddr().(*net.UDPAddr).Port
	close(r.Ready)
	r.log.Info("Relay started", zap.Int("port", r.Port))

	// Closing the socket is the only way to interrupt a blocked read
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, r.cfg.MaxDatagramSize)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					r.log.Info("Relay stopped")
					return nil
				}
				return &TransportError{Op: "read", Err: err}
			}
			r.log.Warn("Error reading datagram", zap.Error(err))
			continue
		}

		r.handlePacket(buf[:n], peer)
	}
}

// Stats returns a snapshot of the packet counters
func (r *Relay) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		Dispatched:   r.dispatched.Load(),
		DecodeErrors: r.decodeErrors.Load(),
		Ignored:      r.ignored.Load(),
		HandleErrors: r.handleErrors.Load(),
	}
}

func (r *Relay) handlePacket(data []byte, peer *net.UDPAddr) {
	r.received.Add(1)

	cmd, err := r.decode(data)
	if err != nil {
		r.decodeErrors.Add(1)
		r.log.Warn("Failed to parse datagram", zap.Stringer("peer", peer), zap.Error(err))
		return
	}

	if err := r.dispatch(cmd, peer); err != nil {
		r.handleErrors.Add(1)
		r.log.Warn("Failed to handle message",
			zap.Stringer("peer", peer),
			zap.String("type", string(cmd.Type())),
			zap.Error(err))
	}
}

// decode never panics: a parser failure on a hostile datagram comes back as
// a DecodeError so the loop keeps serving.
func (r *Relay) decode(data []byte) (cmd protocol.Command, err error) {
	defer func() {
		if p := recover(); p != nil {
			cmd, err = nil, &protocol.DecodeError{Reason: fmt.Sprintf("decoder panic: %v", p)}
		}
	}()
	return decodeFunc(data)
}

// dispatch routes one command. The returned error is for logging only.
func (r *Relay) dispatch(cmd protocol.Command, peer *net.UDPAddr) error {
	switch m := cmd.(type) {
	case protocol.Handshake:
		return r.dispatchHandshake(m.Code, peer)

	case protocol.MouseMove:
		r.dispatched.Add(1)
		return r.injector.MoveRelative(scale(float64(m.X), r.cfg.MouseSpeed), scale(float64(m.Y), r.cfg.MouseSpeed))

	case protocol.KeyboardText:
		r.dispatched.Add(1)
		return r.injector.TypeKeys(input.ParseKeys(m.Letter))

	case protocol.KeyboardCode:
		r.dispatched.Add(1)
		return r.injector.TapRaw(m.Letter)

	default:
		r.ignored.Add(1)
		r.log.Info("Ignoring message", zap.String("type", string(cmd.Type())), zap.Stringer("peer", peer))
		return nil
	}
}

func (r *Relay) dispatchHandshake(code protocol.HandshakeCode, peer *net.UDPAddr) error {
	switch code {
	case protocol.ConnectionReceived:
		r.dispatched.Add(1)
		return r.reply(peer)
	case protocol.MouseLeftPress:
		r.dispatched.Add(1)
		return r.injector.Press(input.ButtonLeft)
	case protocol.MouseLeftRelease:
		r.dispatched.Add(1)
		return r.injector.Release(input.ButtonLeft)
	case protocol.MouseRightPress:
		r.dispatched.Add(1)
		return r.injector.Press(input.ButtonRight)
	case protocol.MouseRightRelease:
		r.dispatched.Add(1)
		return r.injector.Release(input.ButtonRight)
	case protocol.WheelUp:
		r.dispatched.Add(1)
		return r.injector.Scroll(scale(-1, r.cfg.WheelSpeed))
	case protocol.WheelDown:
		r.dispatched.Add(1)
		return r.injector.Scroll(scale(1, r.cfg.WheelSpeed))
	default:
		r.ignored.Add(1)
		r.log.Info("Ignoring handshake code", zap.Stringer("code", code), zap.Stringer("peer", peer))
		return nil
	}
}

// reply sends the handshake reply to the peer's host on our own port; the
// controller listens there rather than on its ephemeral source port.
func (r *Relay) reply(peer *net.UDPAddr) error {
	dest := ReplyAddr(peer, r.Port)
	r.log.Info("Connection attempt", zap.Stringer("peer", peer), zap.Stringer("reply_to", dest))

	if _, err := r.sendTo(r.cfg.Reply, dest); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// ReplyAddr returns peer's address with the port replaced by port
func ReplyAddr(peer *net.UDPAddr, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: peer.IP, Port: port, Zone: peer.Zone}
}

// scale multiplies v by speed and rounds half away from zero
func scale(v, speed float64) int {
	return int(math.Round(v * speed))
}
