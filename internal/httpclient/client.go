// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package httpclient builds the HTTP clients used to talk to the IdP and
// Microsoft Graph.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// NewClient creates a new http client which will use the optional CA
// certificate PEM if provided, otherwise it will use the installed system CA
// chain.  Requests are traced with otelhttp.
func NewClient(caPEM string) (*http.Client, error) {
	tr, err := transport(caPEM)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(tr),
	}, nil
}

// NewRetryableClient wraps NewClient with go-retryablehttp.  maxRetries of
// zero disables retries.  After the last attempt the final response is
// returned to the caller rather than an error, so callers inspect the status
// code as they would with a plain client.
func NewRetryableClient(caPEM string, maxRetries int, logger hclog.Logger) (*http.Client, error) {
	c, err := NewClient(caPEM)
	if err != nil {
		return nil, err
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = c
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	return rc.StandardClient(), nil
}

func transport(caPEM string) (*http.Transport, error) {
	tr := cleanhttp.DefaultPooledTransport()
	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	return tr, nil
}
