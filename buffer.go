package tlsbench

import (
	"bytes"
	"errors"
)

// ErrWouldBlock is returned by ConnectedBuffer.Read when the inbound queue is
// empty. It means "no data yet, retry later" and is distinct from end-of-stream
// and from a genuine I/O failure; an in-memory channel has neither.
var ErrWouldBlock = errors.New("tlsbench: read would block")

// byteQueue is one direction of a connected buffer pair. Writes land in the
// pending area and only become readable once flushed, so visibility to the
// peer is an explicit step, like flushing a socket-backed writer.
type byteQueue struct {
	pending bytes.Buffer
	visible bytes.Buffer
}

func (q *byteQueue) write(p []byte) (int, error) {
	return q.pending.Write(p)
}

func (q *byteQueue) flush() {
	if q.pending.Len() > 0 {
		q.visible.Write(q.pending.Bytes())
		q.pending.Reset()
	}
}

func (q *byteQueue) read(p []byte) (int, error) {
	if q.visible.Len() == 0 {
		return 0, ErrWouldBlock
	}
	return q.visible.Read(p)
}

// ConnectedBuffer is one endpoint's view of an in-memory full-duplex channel
// substituting for a network socket between two simulated peers. One side's
// flushed writes are the other side's reads.
//
// It is not safe for concurrent use. The handshake driver alternates the two
// roles, so only one endpoint is ever touched at a time; that discipline, not
// locking, is what keeps the queues consistent.
type ConnectedBuffer struct {
	out *byteQueue // this endpoint's writes
	in  *byteQueue // this endpoint's reads, the peer's writes
}

// NewConnectedBuffer creates the client-side endpoint of a fresh channel.
// The matching server-side endpoint is obtained with Inverse.
func NewConnectedBuffer() *ConnectedBuffer {
	return &ConnectedBuffer{out: new(byteQueue), in: new(byteQueue)}
}

// Inverse returns the peer's endpoint: the same two queues with the inbound
// and outbound directions swapped. Both views alias the same queue state, so
// they must stay paired for the lifetime of the connection they carry.
func (b *ConnectedBuffer) Inverse() *ConnectedBuffer {
	return &ConnectedBuffer{out: b.in, in: b.out}
}

// Write appends p to the outbound queue. The queue is logically unbounded, so
// Write never blocks and never fails. The bytes become visible to the peer
// only after Flush.
func (b *ConnectedBuffer) Write(p []byte) (int, error) {
	return b.out.write(p)
}

// Flush makes all previously written bytes visible to the peer's reads.
func (b *ConnectedBuffer) Flush() {
	b.out.flush()
}

// Read drains the inbound queue in FIFO order. An empty queue returns
// ErrWouldBlock, never 0-with-nil and never a generic error.
func (b *ConnectedBuffer) Read(p []byte) (int, error) {
	return b.in.read(p)
}
