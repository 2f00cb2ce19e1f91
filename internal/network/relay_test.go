package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"inputrelay/internal/input"
	"inputrelay/internal/protocol"
)

// recorder is an input.Injector that reports every call on a channel
type recorder struct {
	events    chan string
	failPress bool
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 64)}
}

func (r *recorder) MoveRelative(dx, dy int) error {
	r.events <- fmt.Sprintf("move %d %d", dx, dy)
	return nil
}

func (r *recorder) Press(b input.Button) error {
	r.events <- "press " + string(b)
	if r.failPress {
		return errors.New("press failed")
	}
	return nil
}

func (r *recorder) Release(b input.Button) error {
	r.events <- "release " + string(b)
	return nil
}

func (r *recorder) Scroll(amount int) error {
	r.events <- fmt.Sprintf("scroll %d", amount)
	return nil
}

func (r *recorder) TypeKeys(keys []input.Key) error {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	r.events <- "type " + strings.Join(names, " ")
	return nil
}

func (r *recorder) TapRaw(code uint16) error {
	r.events <- fmt.Sprintf("raw %d", code)
	return nil
}

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for injector call")
		return ""
	}
}

type sentPacket struct {
	data []byte
	addr *net.UDPAddr
}

// startRelay runs a relay on a free loopback port and returns a client
// socket connected to it. Handshake replies are captured on the returned
// channel instead of being sent, or fail with sendErr when it is set.
func startRelay(t *testing.T, cfg RelayConfig, inj input.Injector, sendErr error) (*Relay, *net.UDPConn, chan sentPacket) {
	t.Helper()

	cfg.Port = 0
	cfg.Logger = zap.NewNop()
	r := NewRelay(cfg, inj)

	sent := make(chan sentPacket, 8)
	r.sendTo = func(b []byte, addr *net.UDPAddr) (int, error) {
		if sendErr != nil {
			return 0, sendErr
		}
		sent <- sentPacket{data: append([]byte(nil), b...), addr: addr}
		return len(b), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("relay exited with error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop")
		}
	})

	select {
	case <-r.Ready:
	case err := <-errCh:
		t.Fatalf("relay failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay not ready")
	}

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: r.Port})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	return r, client, sent
}

func send(t *testing.T, conn *net.UDPConn, msg string) {
	t.Helper()
	if _, err := conn.Write([]byte(msg)); err != nil {
		t.Fatal(err)
	}
}

func TestHandshakeReplyGoesToServerPort(t *testing.T) {
	reply := buildReply("Mac OS X-10.15.1-x86_64")
	rec := newRecorder()
	r, client, sent := startRelay(t, RelayConfig{Reply: reply}, rec, nil)

	send(t, client, "{type:'aioc',id:0}")

	var pkt sentPacket
	select {
	case pkt = <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no handshake reply sent")
	}

	want := `{"type":"cs","sender":"server","status":"acceptUdpConnection","statusMessage":"Mac OS X-10.15.1-x86_64"}` + "\n"
	if string(pkt.data) != want {
		t.Fatalf("reply = %q, want %q", pkt.data, want)
	}
	if !pkt.addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("reply host = %s, want 127.0.0.1", pkt.addr.IP)
	}
	if pkt.addr.Port != r.Port {
		t.Fatalf("reply port = %d, want server port %d", pkt.addr.Port, r.Port)
	}
	clientPort := client.LocalAddr().(*net.UDPAddr).Port
	if pkt.addr.Port == clientPort {
		t.Fatalf("reply must not go to the sender's source port %d", clientPort)
	}

	// A later packet being dispatched proves the handshake was fully handled
	send(t, client, "{type:'mmb',x:1,y:1}")
	if ev := rec.next(t); ev != "move 1 1" {
		t.Fatalf("got %q", ev)
	}
	if len(sent) != 0 {
		t.Fatalf("expected exactly one reply, got %d more", len(sent))
	}
}

func TestButtonOrdering(t *testing.T) {
	rec := newRecorder()
	_, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, `{"type":"aioc","id":56}`)
	send(t, client, `{"type":"aioc","id":57}`)
	send(t, client, `{"type":"aioc","id":58}`)
	send(t, client, `{"type":"aioc","id":59}`)

	for _, want := range []string{"press left", "release left", "press right", "release right"} {
		if got := rec.next(t); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestMalformedPacketsDoNotStopLoop(t *testing.T) {
	rec := newRecorder()
	r, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, "not json at all")
	send(t, client, string([]byte{'{', 0xfe, '}'}))
	send(t, client, "{type:'ksb',state:3,letter:4}")
	send(t, client, "{type:'mmb',x:509,y:531}")

	if got := rec.next(t); got != "move 509 531" {
		t.Fatalf("got %q", got)
	}
	stats := r.Stats()
	if stats.DecodeErrors != 3 {
		t.Fatalf("decode errors = %d, want 3", stats.DecodeErrors)
	}
	if stats.Received != 4 || stats.Dispatched != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSpeedScaling(t *testing.T) {
	rec := newRecorder()
	_, client, _ := startRelay(t, RelayConfig{MouseSpeed: 1.5, WheelSpeed: 3}, rec, nil)

	send(t, client, "{type:'mmb',x:3,y:-3}")
	send(t, client, "{type:'aioc',id:60}")
	send(t, client, "{type:'aioc',id:61}")

	for _, want := range []string{"move 5 -5", "scroll -3", "scroll 3"} {
		if got := rec.next(t); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestKeyboardDispatch(t *testing.T) {
	rec := newRecorder()
	_, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, "{type:'ksb',state:3,letter:'C--e--x--backspace--m'}")
	send(t, client, `{"type":"kib","letter":13,"state":14}`)

	if got := rec.next(t); got != "type 'C' 'e' 'x' backspace 'm'" {
		t.Fatalf("got %q", got)
	}
	if got := rec.next(t); got != "raw 13" {
		t.Fatalf("got %q", got)
	}
}

func TestConnectionStatusInputIgnored(t *testing.T) {
	rec := newRecorder()
	r, client, sent := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, `{"type":"cs","sender":"phone","status":"x","statusMessage":"y"}`)
	send(t, client, "{type:'mmb',x:0,y:2}")

	if got := rec.next(t); got != "move 0 2" {
		t.Fatalf("got %q", got)
	}
	if ignored := r.Stats().Ignored; ignored != 1 {
		t.Fatalf("ignored = %d, want 1", ignored)
	}
	if len(sent) != 0 {
		t.Fatal("connection status must not trigger a reply")
	}
}

func TestInjectorErrorDoesNotStopLoop(t *testing.T) {
	rec := newRecorder()
	rec.failPress = true
	r, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, "{type:'aioc',id:56}")
	send(t, client, "{type:'aioc',id:57}")

	if got := rec.next(t); got != "press left" {
		t.Fatalf("got %q", got)
	}
	if got := rec.next(t); got != "release left" {
		t.Fatalf("got %q", got)
	}
	if n := r.Stats().HandleErrors; n != 1 {
		t.Fatalf("handle errors = %d, want 1", n)
	}
}

func TestSendFailureDoesNotStopLoop(t *testing.T) {
	rec := newRecorder()
	r, client, _ := startRelay(t, RelayConfig{Reply: []byte("x")}, rec, errors.New("network unreachable"))

	send(t, client, "{type:'aioc',id:0}")
	send(t, client, "{type:'mmb',x:1,y:2}")

	if got := rec.next(t); got != "move 1 2" {
		t.Fatalf("got %q", got)
	}
	if n := r.Stats().HandleErrors; n != 1 {
		t.Fatalf("handle errors = %d, want 1", n)
	}
}

func TestBindFailure(t *testing.T) {
	r := NewRelay(RelayConfig{Port: 70000}, newRecorder())

	err := r.Run(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Op != "bind" {
		t.Fatalf("op = %q, want bind", te.Op)
	}
	select {
	case <-r.Ready:
		t.Fatal("Ready must not close when bind fails")
	default:
	}
}

func TestSecondRelayOnSamePortFails(t *testing.T) {
	first, _, _ := startRelay(t, RelayConfig{}, newRecorder(), nil)

	second := NewRelay(RelayConfig{Port: first.Port, Logger: zap.NewNop()}, newRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- second.Run(ctx) }()

	select {
	case err := <-errCh:
		var te *TransportError
		if !errors.As(err, &te) || te.Op != "bind" {
			t.Fatalf("expected bind TransportError, got %v", err)
		}
	case <-second.Ready:
		t.Fatalf("second relay bound port %d already held by a running relay", first.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("second relay neither bound nor failed")
	}
}

func TestHostileDatagramDoesNotStopLoop(t *testing.T) {
	rec := newRecorder()
	r, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, "A:")
	send(t, client, "{type:'mmb',x:2,y:3}")

	if got := rec.next(t); got != "move 2 3" {
		t.Fatalf("got %q", got)
	}
	if n := r.Stats().DecodeErrors; n != 1 {
		t.Fatalf("decode errors = %d, want 1", n)
	}
}

func TestDecoderPanicCountedAsDecodeError(t *testing.T) {
	orig := decodeFunc
	decodeFunc = func(data []byte) (protocol.Command, error) {
		if string(data) == "boom" {
			panic("index out of range [-1]")
		}
		return orig(data)
	}
	t.Cleanup(func() { decodeFunc = orig })

	rec := newRecorder()
	r, client, _ := startRelay(t, RelayConfig{}, rec, nil)

	send(t, client, "boom")
	send(t, client, "{type:'aioc',id:58}")

	if got := rec.next(t); got != "press right" {
		t.Fatalf("got %q", got)
	}
	stats := r.Stats()
	if stats.DecodeErrors != 1 || stats.Received != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReplyAddr(t *testing.T) {
	peer := &net.UDPAddr{IP: net.ParseIP("192.168.1.20"), Port: 53211}
	got := ReplyAddr(peer, DefaultPort)
	if !got.IP.Equal(peer.IP) || got.Port != DefaultPort {
		t.Fatalf("got %s", got)
	}
	if peer.Port != 53211 {
		t.Fatal("peer address was modified")
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		v, speed float64
		want     int
	}{
		{10, 1, 10},
		{3, 1.5, 5},
		{-3, 1.5, -5},
		{1, 0.4, 0},
		{-1, 2.6, -3},
		{135, 0.5, 68},
	}
	for _, tt := range tests {
		if got := scale(tt.v, tt.speed); got != tt.want {
			t.Errorf("scale(%v, %v) = %d, want %d", tt.v, tt.speed, got, tt.want)
		}
	}
}
