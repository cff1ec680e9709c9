package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"serverwatch/internal/domain"
)

const defaultTimeout = 30 * time.Second

// HTTPChecker probes a server with a GET request. Each check uses a fresh,
// non-pooled client so no cookies or keep-alive connections leak between
// checks. A TLS failure on an https URL gets one plaintext retry.
type HTTPChecker struct {
	Gate    Gate
	Timeout time.Duration
}

func NewHTTPChecker(gate Gate, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPChecker{Gate: gate, Timeout: timeout}
}

func (c *HTTPChecker) Check(ctx context.Context, srv domain.Server) Outcome {
	if c.Gate != nil && !c.Gate.Available() {
		return Outcome{Reason: "network unavailable"}
	}

	target := NormalizeURL(srv.Domain)
	code, err := c.fetch(ctx, target)
	if err == nil {
		return classify(code, srv.ExpectedStatus)
	}

	if isTLSFailure(err) && strings.HasPrefix(target, "https://") {
		fallback := "http://" + strings.TrimPrefix(target, "https://")
		if code, err2 := c.fetch(ctx, fallback); err2 == nil {
			return classify(code, srv.ExpectedStatus)
		}
	}

	return Outcome{Reason: reason(err)}
}

func (c *HTTPChecker) fetch(ctx context.Context, url string) (int, error) {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
	}
	client := &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
	return resp.StatusCode, nil
}

func classify(code, expected int) Outcome {
	out := Outcome{StatusCode: code, Online: domain.Classify(code, expected)}
	if !out.Online {
		out.Reason = http.StatusText(code)
	}
	return out
}

// NormalizeURL turns a bare host into an https URL; anything that already
// carries a scheme is used as-is.
func NormalizeURL(host string) string {
	h := strings.TrimSpace(host)
	if strings.Contains(h, "://") {
		return h
	}
	return "https://" + h
}

// isTLSFailure reports whether err is a secure-connection failure, the one
// class of error that earns a plaintext retry.
func isTLSFailure(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	var certErr x509.CertificateInvalidError
	if errors.As(err, &certErr) {
		return true
	}
	// handshake alerts surface as opaque errors; match on the message
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return "DNS lookup failed"
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "Client.Timeout"):
		return "request timed out"
	case isTLSFailure(err):
		return "secure connection failed"
	default:
		return msg
	}
}
