package blockstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"expvar"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Read/Write timeout in the admin server
const adminServerTimeout = 10 * time.Second

// AdminListener is an HTTP(S) listener for admin services. It publishes metrics
// and lets operators query the store.
type AdminListener struct {
	httpServer *http.Server

	id    string
	addr  string
	opt   AdminListenerOptions
	store *Store

	mux *http.ServeMux

	mu      sync.Mutex
	stopped bool
	ready   chan struct{} // closed once listening, or once Start gave up
	once    sync.Once
}

var _ Listener = &AdminListener{}

// AdminListenerOptions contains options used by the admin service.
type AdminListenerOptions struct {
	ListenOptions

	// Serve HTTPS with this config. Plain HTTP if nil.
	TLSConfig *tls.Config

	// Enable the endpoint that loads local files into the store. Off by default
	// since loaded entries can't be removed again.
	AllowLoad bool
}

type checkResponse struct {
	Domain  string `json:"domain"`
	Blocked bool   `json:"blocked"`
}

type loadResponse struct {
	Source  string `json:"source"`
	Loaded  bool   `json:"loaded"`
	Entries int    `json:"entries"`
}

// NewAdminListener returns an instance of an admin service listener.
func NewAdminListener(id, addr string, store *Store, opt AdminListenerOptions) *AdminListener {
	l := &AdminListener{
		id:    id,
		addr:  addr,
		opt:   opt,
		store: store,
		mux:   http.NewServeMux(),
		ready: make(chan struct{}),
	}
	l.mux.Handle("/blockstore/vars", expvar.Handler())
	l.mux.HandleFunc("/blockstore/check", l.check)
	if opt.AllowLoad {
		l.mux.HandleFunc("/blockstore/load", l.load)
	}
	return l
}

func (s *AdminListener) protocol() string {
	if s.opt.TLSConfig != nil {
		return "https"
	}
	return "http"
}

func (s *AdminListener) setReady() {
	s.once.Do(func() { close(s.ready) })
}

// Start the admin server. Returns immediately if the listener was already
// stopped.
func (s *AdminListener) Start() error {
	defer s.setReady()
	Log.WithFields(logrus.Fields{"id": s.id, "protocol": s.protocol(), "addr": s.addr}).Info("starting listener")

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	defer ln.Close()
	s.httpServer = &http.Server{
		Addr:         s.addr,
		TLSConfig:    s.opt.TLSConfig,
		Handler:      s,
		ReadTimeout:  adminServerTimeout,
		WriteTimeout: adminServerTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()
	s.setReady()

	if s.opt.TLSConfig != nil {
		return srv.ServeTLS(ln, "", "")
	}
	return srv.Serve(ln)
}

// Stop the server.
func (s *AdminListener) Stop() error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	Log.WithFields(logrus.Fields{"id": s.id, "protocol": s.protocol(), "addr": s.addr}).Info("stopping listener")
	ctx, cancel := context.WithTimeout(context.Background(), adminServerTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// ServeHTTP applies the client ACL and passes allowed requests to the admin
// endpoints.
func (s *AdminListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil || !isAllowed(s.opt.AllowedNet, ip) {
		Log.WithFields(logrus.Fields{"id": s.id, "client": r.RemoteAddr}).Debug("refusing client ip")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *AdminListener) String() string {
	return s.id
}

func (s *AdminListener) check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		http.Error(w, "missing domain", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Domain:  domain,
		Blocked: s.store.IsBlocked(domain),
	})
}

func (s *AdminListener) load(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source := r.FormValue("source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}
	resp := loadResponse{Source: source}
	status := http.StatusOK
	resp.Loaded = s.store.LoadBlocklist(source)
	if !resp.Loaded {
		status = http.StatusInternalServerError
	}
	resp.Entries = s.store.Len()
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.WithError(err).Error("failed to write admin response")
	}
}
