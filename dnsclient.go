package blockstore

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// DNSClient represents a simple DNS resolver for UDP or TCP.
type DNSClient struct {
	id       string
	endpoint string
	net      string
	client   *dns.Client
}

var _ Resolver = &DNSClient{}

// DNSClientOptions contains options used by the DNS client.
type DNSClientOptions struct {
	// Query timeout, defaults to 2 seconds.
	Timeout time.Duration
}

const defaultQueryTimeout = 2 * time.Second

// NewDNSClient returns a new instance of DNSClient which is a plain DNS resolver
// forwarding queries to an upstream server.
func NewDNSClient(id, endpoint, net string, opt DNSClientOptions) (*DNSClient, error) {
	switch net {
	case "udp", "tcp":
	default:
		return nil, fmt.Errorf("unsupported protocol '%s'", net)
	}
	if opt.Timeout == 0 {
		opt.Timeout = defaultQueryTimeout
	}
	return &DNSClient{
		id:       id,
		net:      net,
		endpoint: endpoint,
		client: &dns.Client{
			Net:     net,
			Timeout: opt.Timeout,
		},
	}, nil
}

// Resolve a DNS query.
func (d *DNSClient) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	logger(d.id, q, ci).WithField("resolver", d.endpoint).Debug("querying upstream resolver")
	a, _, err := d.client.Exchange(q, d.endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s/%s", d.endpoint, d.net)
	}
	return a, nil
}

func (d *DNSClient) String() string {
	return d.id
}
