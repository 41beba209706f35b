package blockstore

import (
	"expvar"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Blocklist is a resolver that returns NXDOMAIN for every query whose name, or a
// parent of it, is in the store. Everything else is passed through to another
// resolver.
type Blocklist struct {
	id string
	BlocklistOptions
	store    *Store
	resolver Resolver
	metrics  *BlocklistMetrics
}

var _ Resolver = &Blocklist{}

type BlocklistOptions struct {
	// Optional, send any blocklist match to this resolver rather
	// than return NXDOMAIN.
	BlocklistResolver Resolver
}

type BlocklistMetrics struct {
	// Blocked queries count.
	blocked *expvar.Int
	// Allowed queries count.
	allowed *expvar.Int
}

func NewBlocklistMetrics(id string) *BlocklistMetrics {
	return &BlocklistMetrics{
		allowed: getVarInt("blocklist", id, "allow"),
		blocked: getVarInt("blocklist", id, "deny"),
	}
}

// NewBlocklist returns a new instance of a blocklist resolver backed by the
// given store.
func NewBlocklist(id string, store *Store, resolver Resolver, opt BlocklistOptions) (*Blocklist, error) {
	if store == nil {
		return nil, errors.New("blocklist requires a store")
	}
	if resolver == nil {
		return nil, errors.New("blocklist requires an upstream resolver")
	}
	return &Blocklist{
		id:               id,
		BlocklistOptions: opt,
		store:            store,
		resolver:         resolver,
		metrics:          NewBlocklistMetrics(id),
	}, nil
}

// Resolve a DNS query by first checking the query name against the store.
// Queries that do not match are passed on to the next resolver.
func (r *Blocklist) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	if len(q.Question) < 1 {
		return nil, errors.New("no question in query")
	}
	question := q.Question[0]
	log := logger(r.id, q, ci)

	if !r.store.IsBlocked(domainName(question)) {
		log.WithField("resolver", r.resolver.String()).Debug("forwarding unmodified query to resolver")
		r.metrics.allowed.Add(1)
		return r.resolver.Resolve(q, ci)
	}
	r.metrics.blocked.Add(1)

	// If an optional blocklist-resolver was given, send the query to that instead of returning NXDOMAIN.
	if r.BlocklistResolver != nil {
		log.WithField("resolver", r.BlocklistResolver.String()).Debug("matched blocklist, forwarding")
		return r.BlocklistResolver.Resolve(q, ci)
	}

	log.Debug("blocking request")
	answer := nxdomain(q)
	answer.RecursionAvailable = q.RecursionDesired
	return answer, nil
}

func (r *Blocklist) String() string {
	return r.id
}
