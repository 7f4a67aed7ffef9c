package tlsbench

import (
	"crypto/tls"
)

const sessionCacheSize = 3

// sessionCache retains the most recent session tickets the server hands out
// after the handshake. Every harness installs a fresh cache, so tickets are
// exercised but a benchmark iteration never resumes a previous iteration's
// session.
type sessionCache struct {
	cache []*tls.ClientSessionState
}

var _ tls.ClientSessionCache = &sessionCache{}

func newSessionCache() *sessionCache {
	return &sessionCache{}
}

func (c *sessionCache) Put(_ string, cs *tls.ClientSessionState) {
	if cs == nil {
		return
	}
	if len(c.cache) == sessionCacheSize {
		c.cache = c.cache[1:]
	}
	c.cache = append(c.cache, cs)
}

func (c *sessionCache) Get(_ string) (*tls.ClientSessionState, bool) {
	if len(c.cache) == 0 {
		return nil, false
	}
	ticket := c.cache[len(c.cache)-1]
	c.cache = c.cache[:len(c.cache)-1]
	return ticket, true
}
