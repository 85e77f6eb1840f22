// Package tls builds the mutual-TLS configurations used between the
// forecasting service and its callers. Both directions require TLS 1.3 and
// verify the peer certificate against a shared CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// suites lists the TLS 1.3 cipher suites accepted on both sides.
var suites = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
}

// Config holds TLS certificate file paths for client or server use.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate returns an error when TLS is enabled but the certificate files
// are missing or inaccessible. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validateCertFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// NewServerTLSConfig builds the server-side mTLS configuration: the server
// presents certFile/keyFile and requires client certificates signed by the
// CA in caFile.
func NewServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		ClientCAs:                pool,
		ClientAuth:               tls.RequireAndVerifyClientCert,
		MinVersion:               tls.VersionTLS13,
		CipherSuites:             suites,
		PreferServerCipherSuites: true,
	}, nil
}

// NewClientTLSConfig builds the client-side mTLS configuration: the client
// presents certFile/keyFile and verifies the server against the CA in
// caFile.
func NewClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if err := validateCertFiles(certFile, keyFile, caFile); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: suites,
	}, nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

func validateCertFiles(certFile, keyFile, caFile string) error {
	if certFile == "" || keyFile == "" || caFile == "" {
		return errors.New("tls cert, key and ca file paths are all required")
	}
	for _, path := range []string{certFile, keyFile, caFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("certificate file %q: %w", path, err)
		}
	}
	return nil
}
