// Package search implements the search orchestrator: provider registry,
// result normalizer, and the mode-aware fan-out client (spec.md §4.5).
package search

import (
	"crypto/tls"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// cipherPool is shuffled per client and handed to tls.Config.CipherSuites.
// crypto/tls orders cipher suites itself and ignores the order of that
// list, so the shuffle does not change the ClientHello's cipher order.
var cipherPool = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

func shuffledCiphers() []uint16 {
	out := make([]uint16, len(cipherPool))
	copy(out, cipherPool)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// randomizedH2Settings draws HTTP/2 SETTINGS values from ranges real
// browsers are observed to use. NewFingerprintedClient computes them but
// does not apply them, so the SETTINGS frame keeps the transport defaults.
func randomizedH2Settings() []http2.Setting {
	return []http2.Setting{
		{ID: http2.SettingHeaderTableSize, Val: uint32(4096 + rand.Intn(61440))},
		{ID: http2.SettingInitialWindowSize, Val: uint32(65535 + rand.Intn(6291456))},
		{ID: http2.SettingMaxConcurrentStreams, Val: uint32(100 + rand.Intn(900))},
	}
}

// NewFingerprintedClient builds an HTTP/2-capable *http.Client with a
// shuffled cipher list, falling back to HTTP/1.1 automatically when the
// transport hits an HPACK/protocol-level error. Neither the ClientHello's
// cipher order nor the HTTP/2 SETTINGS frame varies between clients (see
// cipherPool and randomizedH2Settings).
func NewFingerprintedClient(timeout time.Duration) *http.Client {
	tlsConf := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: shuffledCiphers(),
	}
	transport := &http.Transport{
		TLSClientConfig:     tlsConf,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	if h2, err := http2.ConfigureTransports(transport); err == nil && h2 != nil {
		h2.StrictMaxConcurrentStreams = false
		for _, s := range randomizedH2Settings() {
			_ = s // the randomized values are advisory tuning; http2.Transport
			// does not expose a direct SETTINGS-frame override in the
			// standard library, so the bounded randomization documents the
			// intended fingerprint surface for a vendored/forked transport.
		}
	}
	return &http.Client{
		Transport: &http1Fallback{primary: transport, timeout: timeout},
		Timeout:   timeout,
	}
}

// http1Fallback retries a request over plain HTTP/1.1 when the HTTP/2
// transport fails with a protocol or HPACK-level error, matching the
// fallback behavior the teacher's provider HTTP client documents.
type http1Fallback struct {
	primary *http.Transport
	timeout time.Duration
}

func (f *http1Fallback) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := f.primary.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if !isProtocolLevelError(err) {
		return resp, err
	}
	fallback := f.primary.Clone()
	fallback.ForceAttemptHTTP2 = false
	fallback.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	return fallback.RoundTrip(req)
}

func isProtocolLevelError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	for _, needle := range []string{"PROTOCOL_ERROR", "HPACK", "HTTP2:", "COMPRESSION_ERROR"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
