package blockstore

import (
	"fmt"
	"net"
)

// Listener is an interface for a network listener that serves until stopped.
type Listener interface {
	Start() error
	Stop() error
	fmt.Stringer
}

// ClientInfo carries information about the client making the request.
type ClientInfo struct {
	SourceIP net.IP

	// Identifier of the listener the query came in on.
	Listener string
}
