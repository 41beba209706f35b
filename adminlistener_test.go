package blockstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdminListenerCheck(t *testing.T) {
	store := NewStore("test-admin-check")
	_, err := store.Load(NewStaticSource("list", []string{"blocked.test"}))
	require.NoError(t, err)
	l := NewAdminListener("test-admin", "127.0.0.1:0", store, AdminListenerOptions{})

	tests := []struct {
		domain  string
		blocked bool
	}{
		{"blocked.test", true},
		{"www.Blocked.Test", true},
		{"allowed.test", false},
	}
	for _, test := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/blockstore/check?domain="+url.QueryEscape(test.domain), nil)
		l.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp checkResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Equal(t, checkResponse{Domain: test.domain, Blocked: test.blocked}, resp)
	}

	// Missing domain
	w := httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blockstore/check", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminListenerLoad(t *testing.T) {
	store := NewStore("test-admin-load")
	l := NewAdminListener("test-admin", "127.0.0.1:0", store, AdminListenerOptions{AllowLoad: true})

	post := func(source string) (int, loadResponse) {
		form := url.Values{"source": {source}}
		req := httptest.NewRequest(http.MethodPost, "/blockstore/load", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		l.ServeHTTP(w, req)
		var resp loadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		return w.Code, resp
	}

	filename := writeList(t, "list.txt", "one.test", "two.test")
	code, resp := post(filename)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, loadResponse{Source: filename, Loaded: true, Entries: 2}, resp)
	require.True(t, store.IsBlocked("www.one.test"))

	missing := filepath.Join(t.TempDir(), "missing.txt")
	code, resp = post(missing)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, loadResponse{Source: missing, Loaded: false, Entries: 2}, resp)

	// Wrong method
	w := httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blockstore/load?source="+url.QueryEscape(filename), nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAdminListenerVars(t *testing.T) {
	store := NewStore("test-admin-vars")
	_, err := store.Load(NewStaticSource("list", []string{"a.test", "b.test"}))
	require.NoError(t, err)
	l := NewAdminListener("test-admin", "127.0.0.1:0", store, AdminListenerOptions{})

	w := httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blockstore/vars", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var vars map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&vars))
	require.Equal(t, float64(2), vars["blockstore.store.test-admin-vars.entries"])
}

func TestAdminListenerLoadDisabled(t *testing.T) {
	store := NewStore("test-admin-load-disabled")
	l := NewAdminListener("test-admin", "127.0.0.1:0", store, AdminListenerOptions{})

	filename := writeList(t, "list.txt", "one.test")
	form := url.Values{"source": {filename}}
	req := httptest.NewRequest(http.MethodPost, "/blockstore/load", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	l.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 0, store.Len())
}

func TestAdminListenerACL(t *testing.T) {
	store := NewStore("test-admin-acl")
	_, err := store.Load(NewStaticSource("list", []string{"blocked.test"}))
	require.NoError(t, err)
	_, allowed, err := net.ParseCIDR("127.0.0.0/8")
	require.NoError(t, err)
	l := NewAdminListener("test-admin", "127.0.0.1:0", store, AdminListenerOptions{
		ListenOptions: ListenOptions{AllowedNet: []*net.IPNet{allowed}},
		AllowLoad:     true,
	})

	for _, path := range []string{"/blockstore/check?domain=blocked.test", "/blockstore/vars"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		l.ServeHTTP(w, req)
		require.Equal(t, http.StatusForbidden, w.Code, path)

		req.RemoteAddr = "127.0.0.1:5555"
		w = httptest.NewRecorder()
		l.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	// A refused client can't load anything either
	filename := writeList(t, "list.txt", "one.test")
	req := httptest.NewRequest(http.MethodPost, "/blockstore/load", strings.NewReader(url.Values{"source": {filename}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	l.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 1, store.Len())
}

// Writes a self-signed certificate for 127.0.0.1 and its key to a temporary
// directory.
func writeTestCert(t *testing.T) (crtFile, keyFile string, pool *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "blockstore-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	crtFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(crtFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pool = x509.NewCertPool()
	pool.AddCert(cert)
	return crtFile, keyFile, pool
}

func TestAdminListenerTLS(t *testing.T) {
	crtFile, keyFile, pool := writeTestCert(t)
	tlsConfig, err := TLSServerConfig("", crtFile, keyFile, false)
	require.NoError(t, err)

	store := NewStore("test-admin-tls")
	_, err = store.Load(NewStaticSource("list", []string{"blocked.test"}))
	require.NoError(t, err)

	addr, err := getLnAddress()
	require.NoError(t, err)
	l := NewAdminListener("test-admin-tls", addr, store, AdminListenerOptions{TLSConfig: tlsConfig})
	go func() {
		_ = l.Start()
	}()
	<-l.ready
	defer l.Stop()

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}},
	}
	resp, err := client.Get("https://" + addr + "/blockstore/check?domain=www.blocked.test")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var check checkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&check))
	require.True(t, check.Blocked)

	// Plain HTTP is rejected by the TLS server
	plain, err := http.Get("http://" + addr + "/blockstore/check?domain=blocked.test")
	require.NoError(t, err)
	plain.Body.Close()
	require.Equal(t, http.StatusBadRequest, plain.StatusCode)
}

func TestAdminListenerStopBeforeStart(t *testing.T) {
	addr, err := getLnAddress()
	require.NoError(t, err)
	l := NewAdminListener("test-admin-stop", addr, NewStore("test-admin-stop"), AdminListenerOptions{})
	require.NoError(t, l.Stop())
	require.NoError(t, l.Start())
}

func TestTLSServerConfigErrors(t *testing.T) {
	_, err := TLSServerConfig("", "", "", false)
	require.Error(t, err)
	_, err = TLSServerConfig(filepath.Join(t.TempDir(), "missing-ca.crt"), "server.crt", "server.key", true)
	require.Error(t, err)
}
