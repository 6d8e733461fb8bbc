package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig holds HTTPS settings for the long-poll client. File paths
// point to PEM data.
type TLSConfig struct {
	// CAFile adds trusted CA certificates to the system pool.
	CAFile string

	// CertFile and KeyFile hold a client certificate for mutual TLS.
	// Both or neither must be set.
	CertFile string
	KeyFile  string

	// ServerName overrides the name used to verify the server certificate.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// IsZero reports whether no TLS setting is given.
func (c TLSConfig) IsZero() bool {
	return c == TLSConfig{}
}

// NewClientTLSConfig creates the TLS configuration for HTTPS long polls.
// TLS 1.2 is the minimum.
func NewClientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, errors.New("client certificate needs both certFile and keyFile")
	}

	return tlsConfig, nil
}

// NewHTTPClient returns an HTTP client for long polls using cfg. It has no
// overall timeout since a poll may stay open indefinitely.
func NewHTTPClient(cfg TLSConfig) (*http.Client, error) {
	tlsConfig, err := NewClientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Transport: transport}, nil
}
