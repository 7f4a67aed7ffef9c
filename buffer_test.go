package tlsbench

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConnectedBuffer", func() {
	var client, server *ConnectedBuffer

	BeforeEach(func() {
		client = NewConnectedBuffer()
		server = client.Inverse()
	})

	It("signals would-block on an empty queue", func() {
		b := make([]byte, 16)
		n, err := server.Read(b)
		Expect(n).To(BeZero())
		Expect(err).To(MatchError(ErrWouldBlock))
	})

	It("keeps writes invisible to the peer until flushed", func() {
		_, err := client.Write([]byte("flight"))
		Expect(err).ToNot(HaveOccurred())

		b := make([]byte, 16)
		_, err = server.Read(b)
		Expect(err).To(MatchError(ErrWouldBlock))

		client.Flush()
		n, err := server.Read(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(b[:n])).To(Equal("flight"))
	})

	It("preserves FIFO order across writes and split reads", func() {
		for _, chunk := range []string{"abc", "defg", "h"} {
			_, err := client.Write([]byte(chunk))
			Expect(err).ToNot(HaveOccurred())
		}
		client.Flush()

		var got []byte
		b := make([]byte, 3)
		for {
			n, err := server.Read(b)
			if err != nil {
				Expect(err).To(MatchError(ErrWouldBlock))
				break
			}
			got = append(got, b[:n]...)
		}
		Expect(string(got)).To(Equal("abcdefgh"))
	})

	It("gives complementary views to the two endpoints", func() {
		_, err := client.Write([]byte("ping"))
		Expect(err).ToNot(HaveOccurred())
		client.Flush()
		_, err = server.Write([]byte("pong"))
		Expect(err).ToNot(HaveOccurred())
		server.Flush()

		b := make([]byte, 4)
		_, err = server.Read(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(b)).To(Equal("ping"))
		_, err = client.Read(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(b)).To(Equal("pong"))

		// a view must never read its own writes back
		_, err = client.Read(b)
		Expect(err).To(MatchError(ErrWouldBlock))
	})

	It("aliases the same queues through double inversion", func() {
		_, err := server.Inverse().Write([]byte("x"))
		Expect(err).ToNot(HaveOccurred())
		server.Inverse().Flush()

		b := make([]byte, 1)
		n, err := server.Read(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(b[0]).To(Equal(byte('x')))
	})
})
