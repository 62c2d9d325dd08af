package service

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertificates is returned by LoadCertPool when a directory holds no
// usable certificate.
var ErrNoCertificates = errors.New("no certificates found")

// WithRootCAs makes the client trust the given certificate authorities, e.g.
// the self-signed certificate of a local emulator.
func WithRootCAs(pool *x509.CertPool) HTTPClientOption {
	return func(c *HTTPClient) {
		applyTLSConfigToClient(c.httpClient, &tls.Config{RootCAs: pool})
	}
}

// LoadCertPool loads every .crt, .pem and .cer file in certsDir into a
// certificate pool. Files that are not PEM certificates are skipped.
func LoadCertPool(certsDir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(certsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificates directory: %w", err)
	}

	pool := x509.NewCertPool()
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".crt" && ext != ".pem" && ext != ".cer" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(certsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
		if pool.AppendCertsFromPEM(data) {
			loaded++
		}
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCertificates, certsDir)
	}
	return pool, nil
}

func applyTLSConfigToClient(httpClient *http.Client, tlsConfig *tls.Config) {
	transport, ok := httpClient.Transport.(*http.Transport)
	if ok {
		transport = transport.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	transport.TLSClientConfig = tlsConfig
	httpClient.Transport = transport
}
