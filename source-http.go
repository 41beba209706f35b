package blockstore

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPSource reads blocklist entries from a server via HTTP(S). The response
// body is streamed, nothing is cached between loads.
type HTTPSource struct {
	url string
}

var _ Source = &HTTPSource{}

const httpTimeout = 30 * time.Minute

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{url}
}

func (l *HTTPSource) Open() (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)

	req, err := http.NewRequestWithContext(ctx, "GET", l.url, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "fetch blocklist")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, errors.Errorf("got unexpected status code %d from %s", resp.StatusCode, l.url)
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (l *HTTPSource) String() string {
	return l.url
}

// Releases the request context once the body is done with.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
