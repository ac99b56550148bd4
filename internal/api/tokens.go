package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/nhle/notification-tray/internal/credential"
)

// Cookie names shared with the server.
const (
	CSRFCookieName    = "csrftoken"
	SessionCookieName = "sessionid"
)

// ErrNoToken is returned by providers that have no token to offer.
var ErrNoToken = errors.New("no csrf token available")

// TokenProvider supplies the CSRF token sent with write requests.
type TokenProvider interface {
	CSRFToken(ctx context.Context, target *url.URL) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

// CSRFToken implements TokenProvider.
func (s StaticToken) CSRFToken(context.Context, *url.URL) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// JarTokenProvider reads the csrftoken cookie the server set in the jar,
// the same place a browser would keep it.
type JarTokenProvider struct {
	Jar http.CookieJar
}

// CSRFToken implements TokenProvider.
func (p JarTokenProvider) CSRFToken(_ context.Context, target *url.URL) (string, error) {
	if p.Jar == nil {
		return "", ErrNoToken
	}
	for _, c := range p.Jar.Cookies(target) {
		if c.Name == CSRFCookieName && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrNoToken
}

// KeyringTokenProvider reads a token stored in the system keyring.
type KeyringTokenProvider struct {
	Key string
}

// CSRFToken implements TokenProvider.
func (p KeyringTokenProvider) CSRFToken(context.Context, *url.URL) (string, error) {
	token, err := credential.Get(p.Key)
	if err != nil {
		return "", fmt.Errorf("loading csrf token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// ChainTokenProvider returns the first token any provider offers.
type ChainTokenProvider []TokenProvider

// CSRFToken implements TokenProvider.
func (ps ChainTokenProvider) CSRFToken(ctx context.Context, target *url.URL) (string, error) {
	var errs []error
	for _, p := range ps {
		token, err := p.CSRFToken(ctx, target)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", ErrNoToken
	}
	return "", errors.Join(errs...)
}

// NewCookieJar returns a jar preloaded with the given cookies for base.
func NewCookieJar(base *url.URL, cookies map[string]string) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	preset := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		if value == "" {
			continue
		}
		preset = append(preset, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	if len(preset) > 0 {
		jar.SetCookies(base, preset)
	}
	return jar, nil
}
