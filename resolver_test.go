package blockstore

import (
	"errors"
	"sync"

	"github.com/miekg/dns"
)

// TestResolver is a resolver for tests. It answers every query with an empty
// success response unless a function is set or it's told to fail.
type TestResolver struct {
	mu          sync.Mutex
	ResolveFunc func(*dns.Msg, ClientInfo) (*dns.Msg, error)
	hitCount    int
	shouldFail  bool
}

var _ Resolver = &TestResolver{}

func (r *TestResolver) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hitCount++
	if r.shouldFail {
		return nil, errors.New("failed")
	}
	if r.ResolveFunc != nil {
		return r.ResolveFunc(q, ci)
	}
	a := new(dns.Msg)
	a.SetReply(q)
	return a, nil
}

func (r *TestResolver) HitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hitCount
}

func (r *TestResolver) SetFail(f bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shouldFail = f
}

func (r *TestResolver) String() string {
	return "TestResolver()"
}
