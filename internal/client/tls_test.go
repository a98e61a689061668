package client

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinyakov/soundpad/internal/certgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_TrustsCA(t *testing.T) {
	dir := t.TempDir()
	caCertPEM, caKeyPEM, err := certgen.GenerateCA("Test CA")
	require.NoError(t, err)
	caPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	require.NoError(t, certgen.WritePair(caPath, keyPath, caCertPEM, caKeyPEM))

	caCert, caKey, err := certgen.LoadCACredentials(caPath, keyPath)
	require.NoError(t, err)
	certPEM, keyPEM, err := certgen.GenerateServerCertificate([]string{"127.0.0.1"}, caCert, caKey)
	require.NoError(t, err)
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{pair}}
	srv.StartTLS()
	defer srv.Close()

	c, err := NewHTTPClient(caPath)
	require.NoError(t, err)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	plain, err := NewHTTPClient("")
	require.NoError(t, err)
	_, err = plain.Get(srv.URL)
	assert.Error(t, err, "an unknown CA must be rejected")
}

func TestNewHTTPClient_BadCA(t *testing.T) {
	_, err := NewHTTPClient(filepath.Join(t.TempDir(), "missing.crt"))
	assert.ErrorContains(t, err, "failed to read CA cert")

	bad := filepath.Join(t.TempDir(), "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("invalid pem"), 0o600))
	_, err = NewHTTPClient(bad)
	assert.ErrorContains(t, err, "failed to parse CA cert")
}
