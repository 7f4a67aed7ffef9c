package tlsbench

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// bufferAddr is the placeholder address of an in-memory endpoint.
type bufferAddr struct{}

func (bufferAddr) Network() string { return "mem" }
func (bufferAddr) String() string  { return "connected-buffer" }

// stepOutcome is the result of running a role for one step: either the role's
// negotiation returned (finished, possibly with an error), or it would block
// waiting for the peer's next flight.
type stepOutcome struct {
	finished bool
	err      error
}

// stepGate schedules one role's negotiation cooperatively. crypto/tls caches
// the first handshake error, so the engine cannot be polled by letting reads
// fail with a retry signal; instead the role runs on its own goroutine and the
// gate hands control back and forth, running the role until it either finishes
// or would block. Exactly one side of the gate executes at a time, so the
// shared buffer queues are never touched concurrently; the channel handoffs
// provide the ordering.
type stepGate struct {
	resume chan struct{}
	yield  chan stepOutcome

	// shut is set by the driver once the role has finished (or the harness
	// is torn down). After that, a would-block surfaces to the caller
	// instead of suspending, because post-handshake sends and receives
	// assert synchronous readiness.
	shut bool
}

func newStepGate() *stepGate {
	return &stepGate{
		resume: make(chan struct{}),
		// buffered so a shutdown-provoked final outcome has somewhere
		// to go when nobody is stepping anymore
		yield: make(chan stepOutcome, 1),
	}
}

// start launches the role runner. It does not touch any shared state until
// the first step arrives.
func (g *stepGate) start(negotiate func() error) {
	go func() {
		<-g.resume
		err := negotiate()
		g.yield <- stepOutcome{finished: true, err: err}
	}()
}

// step runs the role until it finishes negotiation or would block.
func (g *stepGate) step() stepOutcome {
	g.resume <- struct{}{}
	return <-g.yield
}

// block is called from inside the role goroutine when no data is available.
// It yields to the driver and parks until the next step.
func (g *stepGate) block() {
	g.yield <- stepOutcome{}
	<-g.resume
}

// shutdown releases a role runner that may still be parked mid-handshake, so
// an abandoned harness does not leak its goroutines. Safe to call whether or
// not the role ever started or already finished.
func (g *stepGate) shutdown() {
	g.shut = true
	select {
	case g.resume <- struct{}{}:
	default:
	}
}

// bridgeConn exposes one channel endpoint through the net.Conn shape the
// engine expects, the way the original registers send/recv callbacks with a
// raw context pointer: the conn is registered once and holds the endpoint for
// the lifetime of the connection.
//
// Write stages outgoing ciphertext on the endpoint. Read flushes pending
// writes first, then drains the inbound queue; on an empty queue it suspends
// the role via the gate while the handshake is being driven, and reports
// ErrWouldBlock once the role has finished, since by then the caller asserts
// data is already there.
type bridgeConn struct {
	buf  *ConnectedBuffer
	gate *stepGate
}

var _ net.Conn = &bridgeConn{}

func (c *bridgeConn) Read(p []byte) (int, error) {
	for {
		c.buf.Flush()
		n, err := c.buf.Read(p)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			// The in-memory channel cannot fail under correct usage;
			// anything else is a harness defect, not a protocol
			// condition.
			panic(fmt.Sprintf("tlsbench: connected buffer read failed: %v", err))
		}
		if c.gate == nil || c.gate.shut {
			return 0, ErrWouldBlock
		}
		c.gate.block()
	}
}

func (c *bridgeConn) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *bridgeConn) Close() error                       { return nil }
func (c *bridgeConn) LocalAddr() net.Addr                { return bufferAddr{} }
func (c *bridgeConn) RemoteAddr() net.Addr               { return bufferAddr{} }
func (c *bridgeConn) SetDeadline(t time.Time) error      { return nil }
func (c *bridgeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *bridgeConn) SetWriteDeadline(t time.Time) error { return nil }
