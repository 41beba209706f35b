package blockstore

import (
	"expvar"
	"net"
	"sync"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// DNSListener is a standard DNS listener for UDP or TCP.
type DNSListener struct {
	*dns.Server
	id string

	mu      sync.Mutex
	running bool
	stopped bool
	ready   chan struct{} // closed once serving, or once Start gave up
	once    sync.Once
}

var _ Listener = &DNSListener{}

type ListenOptions struct {
	// Network allowed to query this listener.
	AllowedNet []*net.IPNet
}

type ListenerMetrics struct {
	// DNS query count.
	query *expvar.Int
	// DNS responses by code.
	response *expvar.Map
	// Errors by type.
	err *expvar.Map
	// Dropped queries.
	drop *expvar.Int
}

func NewListenerMetrics(base string, id string) *ListenerMetrics {
	return &ListenerMetrics{
		query:    getVarInt(base, id, "query"),
		response: getVarMap(base, id, "response"),
		err:      getVarMap(base, id, "error"),
		drop:     getVarInt(base, id, "drop"),
	}
}

// NewDNSListener returns an instance of either a UDP or TCP DNS listener.
func NewDNSListener(id, addr, net string, opt ListenOptions, resolver Resolver) *DNSListener {
	l := &DNSListener{
		id:    id,
		ready: make(chan struct{}),
		Server: &dns.Server{
			Addr:    addr,
			Net:     net,
			Handler: listenHandler(id, net, addr, resolver, opt.AllowedNet),
		},
	}
	l.NotifyStartedFunc = l.setReady
	return l
}

func (s *DNSListener) setReady() {
	s.once.Do(func() { close(s.ready) })
}

// Start the DNS listener. Returns immediately if the listener was already
// stopped.
func (s *DNSListener) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer s.setReady()

	Log.WithFields(logrus.Fields{"id": s.id, "protocol": s.Net, "addr": s.Addr}).Info("starting listener")
	return s.ListenAndServe()
}

// Stop the listener. A Start that is still coming up is waited for, one that
// hasn't been called yet won't serve at all.
func (s *DNSListener) Stop() error {
	s.mu.Lock()
	s.stopped = true
	running := s.running
	s.mu.Unlock()
	if !running {
		return nil
	}
	<-s.ready

	Log.WithFields(logrus.Fields{"id": s.id, "protocol": s.Net, "addr": s.Addr}).Info("stopping listener")
	return s.Shutdown()
}

func (s *DNSListener) String() string {
	return s.id
}

// DNS handler to forward all incoming requests to a given resolver.
func listenHandler(id, protocol, addr string, r Resolver, allowedNet []*net.IPNet) dns.HandlerFunc {
	metrics := NewListenerMetrics("listener", id)
	return func(w dns.ResponseWriter, req *dns.Msg) {
		var err error

		ci := ClientInfo{
			Listener: id,
		}

		switch addr := w.RemoteAddr().(type) {
		case *net.TCPAddr:
			ci.SourceIP = addr.IP
		case *net.UDPAddr:
			ci.SourceIP = addr.IP
		}

		log := Log.WithFields(logrus.Fields{
			"id":       id,
			"client":   ci.SourceIP,
			"qname":    qName(req),
			"protocol": protocol,
			"addr":     addr,
		})
		log.Debug("received query")
		metrics.query.Add(1)

		var a *dns.Msg
		if isAllowed(allowedNet, ci.SourceIP) {
			log.WithField("resolver", r.String()).Debug("forwarding query to resolver")
			a, err = r.Resolve(req, ci)
			if err != nil {
				metrics.err.Add("resolve", 1)
				log.WithError(err).Error("failed to resolve")
				a = servfail(req)
			}
		} else {
			metrics.err.Add("acl", 1)
			log.Debug("refusing client ip")
			a = refused(req)
		}

		// A nil response from the resolvers means "drop", close the connection
		if a == nil {
			w.Close()
			metrics.drop.Add(1)
			return
		}

		// Check the response actually fits if the query was sent over UDP. If not, respond with TC flag.
		if protocol == "udp" {
			maxSize := dns.MinMsgSize
			if edns0 := req.IsEdns0(); edns0 != nil {
				maxSize = int(edns0.UDPSize())
			}
			a.Truncate(maxSize)
		}

		metrics.response.Add(rCode(a), 1)
		_ = w.WriteMsg(a)
	}
}

func isAllowed(allowedNet []*net.IPNet, ip net.IP) bool {
	if len(allowedNet) == 0 {
		return true
	}
	for _, net := range allowedNet {
		if net.Contains(ip) {
			return true
		}
	}
	return false
}
