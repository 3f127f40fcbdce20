package transport

import (
	"net/http"

	"mediport.org/internal/obs"
	"mediport.org/internal/session"
)

// Navigator is what the fault handler needs from the shell: the ability
// to route the user somewhere else.
type Navigator interface {
	NavigateTo(path string)
}

// faultTransport observes responses and performs exactly one corrective
// action per boundary failure. A 401 from any endpoint ends the whole
// session; a 403 only redirects and leaves session state intact. Every
// response and error is passed through unmodified.
type faultTransport struct {
	next    http.RoundTripper
	session *session.Context
	nav     Navigator
}

func (t *faultTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		t.session.Logout()
		obs.LogEvent(map[string]any{
			"level": "warn",
			"msg":   "session invalidated by 401",
			"path":  req.URL.Path,
		})
		if t.nav != nil {
			t.nav.NavigateTo(session.LoginPath)
		}
	case http.StatusForbidden:
		if t.nav != nil {
			t.nav.NavigateTo(session.ForbiddenPath)
		}
	}
	return resp, nil
}
