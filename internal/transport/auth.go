package transport

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"mediport.org/internal/ids"
	"mediport.org/internal/session"
)

const (
	authHeader     = "Authorization"
	bearerScheme   = "Bearer "
	hospitalHeader = "X-Hospital-Id"
	requestIDHdr   = "X-Request-Id"
)

// authTransport decorates outgoing requests with the session's
// authorization context. It never overwrites a caller-supplied
// Authorization header and never forges credentials onto the login call.
// The hospital scope header is attached to every call, the login call
// included; multi-tenant login depends on that asymmetry.
//
// Requests to foreign hosts and to localization assets pass through
// undecorated: the bearer token must never leave the portal origin, and
// static translation bundles carry no session context at all.
type authTransport struct {
	next      http.RoundTripper
	session   *session.Context
	baseHost  string
	loginPath string
	limiter   *rate.Limiter
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.passThrough(req.URL) {
		return t.next.RoundTrip(req)
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	out := req.Clone(req.Context())
	if out.Header.Get(requestIDHdr) == "" {
		out.Header.Set(requestIDHdr, ids.NewRequestID())
	}
	if scope := t.session.HospitalID(); scope != "" && out.Header.Get(hospitalHeader) == "" {
		out.Header.Set(hospitalHeader, scope)
	}
	if !t.isLogin(out.URL.Path) && out.Header.Get(authHeader) == "" {
		if token := t.session.Token(); token != "" {
			out.Header.Set(authHeader, bearerScheme+token)
		}
	}
	return t.next.RoundTrip(out)
}

func (t *authTransport) passThrough(u *url.URL) bool {
	if t.baseHost != "" && !strings.EqualFold(u.Host, t.baseHost) {
		return true
	}
	return IsLocalizationAsset(u.Path)
}

func (t *authTransport) isLogin(path string) bool {
	return strings.EqualFold(path, t.loginPath)
}
