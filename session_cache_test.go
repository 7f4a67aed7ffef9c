package tlsbench

import (
	"crypto/tls"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session Ticket Cache", func() {
	var cache *sessionCache
	const key = "irrelevant"

	BeforeEach(func() {
		cache = newSessionCache()
	})

	It("doesn't return a session ticket if there's none", func() {
		t, ok := cache.Get(key)
		Expect(ok).To(BeFalse())
		Expect(t).To(BeNil())
	})

	It("saves and retrieves session tickets", func() {
		ticket := &tls.ClientSessionState{}
		cache.Put(key, ticket)
		got, ok := cache.Get(key)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(ticket))
		_, ok = cache.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("returns the most recent ticket first", func() {
		first := &tls.ClientSessionState{}
		second := &tls.ClientSessionState{}
		cache.Put(key, first)
		cache.Put(key, second)
		got, ok := cache.Get(key)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(second))
		got, ok = cache.Get(key)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(first))
	})

	It("drops the oldest ticket when full", func() {
		tickets := make([]*tls.ClientSessionState, sessionCacheSize+1)
		for i := range tickets {
			tickets[i] = &tls.ClientSessionState{}
			cache.Put(key, tickets[i])
		}
		for i := len(tickets) - 1; i >= 1; i-- {
			got, ok := cache.Get(key)
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(tickets[i]))
		}
		_, ok := cache.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("ignores removals", func() {
		cache.Put(key, nil)
		_, ok := cache.Get(key)
		Expect(ok).To(BeFalse())
	})
})
