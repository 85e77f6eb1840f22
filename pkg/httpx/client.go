package httpx

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	apptls "github.com/InsaneAbhishek/inventoryai/pkg/tls"
)

// NewClient builds the outbound HTTP client used to call external data
// providers. With tlsCfg.Enabled the client presents its certificate and
// verifies the provider against the configured CA (mTLS); otherwise it is a
// plain client with the given timeout.
func NewClient(tlsCfg apptls.Config, timeout time.Duration) (*http.Client, error) {
	var clientTLS *tls.Config
	if tlsCfg.Enabled {
		var err error
		clientTLS, err = apptls.NewClientTLSConfig(tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			TLSClientConfig:     clientTLS,
		},
	}, nil
}
