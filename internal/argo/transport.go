package argo

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lukas-pastva/argo-workflows-ui/internal/auth"
	"github.com/lukas-pastva/argo-workflows-ui/internal/tlsutil"
)

// TransportOptions tune the shared connection pool used for every upstream
// call.
type TransportOptions struct {
	CAFile                string
	InsecureSkipVerify    bool
	ResponseHeaderTimeout time.Duration
	MaxIdleConnsPerHost   int
}

// NewHTTPClient builds the process-wide HTTP client for the Argo server. The
// client has no overall timeout because followed log streams may stay open
// indefinitely; only waiting for response headers is bounded.
func NewHTTPClient(opts TransportOptions, cred *auth.Credential) (*http.Client, error) {
	tlsConfig, err := tlsutil.ClientConfig(opts.CAFile, opts.InsecureSkipVerify)
	if err != nil {
		return nil, fmt.Errorf("failed to configure upstream TLS: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSClientConfig = tlsConfig
	transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	if opts.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(cred.Transport(transport)),
	}, nil
}
