package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultDomURL   = "https://dom.ufanet.ru"
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = 60
)

// User agents of the official mobile apps; the backends answer differently
// to unknown clients.
const (
	portalUserAgent  = "okhttp/4.9.0"
	camerasUserAgent = "OnePlus NE2211 Android app: Smarthome, OS: 9"
)

// Config is shared by both sessions of one account.
type Config struct {
	Name     string // account display name, prefixes device names
	DomURL   string
	Contract string
	Password string

	Timeout            time.Duration
	PageSize           int
	InsecureSkipVerify bool

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

func (cfg Config) withDefaults() Config {
	if cfg.DomURL == "" {
		cfg.DomURL = DefaultDomURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return cfg
}

func newHTTP(cfg Config, userAgent string) *resty.Client {
	var r *resty.Client
	if cfg.HTTPClient != nil {
		r = resty.NewWithClient(cfg.HTTPClient)
	} else {
		r = resty.New()
	}

	r.SetHeader("Accept", "application/json")
	r.SetHeader("Accept-Language", "ru_RU")
	r.SetHeader("User-Agent", userAgent)
	r.SetTimeout(cfg.Timeout)

	if cfg.InsecureSkipVerify {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return r
}

// authenticator is implemented by both sessions. ensure is called with the
// session lock held; force skips the freshness check.
type authenticator interface {
	ensure(ctx context.Context, force bool) error
}

// call validates the session, sends the request and, on a 401, re-authenticates
// and sends it exactly once more. The caller must hold the session lock.
func call(ctx context.Context, a authenticator, op string, send func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	if err := a.ensure(ctx, false); err != nil {
		return nil, err
	}

	resp, err := send(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		if err := a.ensure(ctx, true); err != nil {
			return nil, err
		}
		resp, err = send(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, newAuthError(op, resp)
		}
	}

	if resp.IsError() {
		return nil, newHTTPError(op, resp)
	}
	return resp, nil
}
