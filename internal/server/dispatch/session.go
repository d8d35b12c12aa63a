package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yndnr/chaingate/internal/server/shardserver"
	"github.com/yndnr/chaingate/pkg/token"
)

// serveLogin serves the login page for anything but POST. A POST checks the
// user and pass body fields and, on success, sets the session cookie.
func (d *Dispatcher) serveLogin(ctx context.Context, req *request, w *shardserver.ResponseBuffer, r *http.Request) string {
	c := req.conn
	c.MarkSendAndClose()
	req.state |= MatchURI

	if !req.state.Has(MethodPost) {
		page := r.WithContext(ctx)
		u := *r.URL
		u.Path = loginPage
		page.URL = &u
		d.static.ServeHTTP(w, page)
		return "page"
	}
	req.state |= MatchMethod

	user, pass := loginForm(r)
	if !d.auth.Authenticate(ctx, user, pass) {
		d.logger.Info("login rejected", "user", user, "remote", c.RemoteIP())
		http.Redirect(w, r, loginPage, http.StatusFound)
		return "denied"
	}

	s, err := d.sessions.Create(user, pass)
	if err != nil {
		d.logger.Warn("failed to create session", "user", user, "error", err)
		http.Redirect(w, r, loginPage, http.StatusFound)
		return "error"
	}
	value := strconv.FormatUint(s.ID, 10)
	c.BindSession(s.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     d.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
	d.logger.Info("login accepted", "user", user, "session", token.Fingerprint(value), "remote", c.RemoteIP())
	return "ok"
}

// loginForm reads the user and pass fields from a url-encoded body. The
// Content-Type is not consulted.
func loginForm(r *http.Request) (user, pass string) {
	if r.Body == nil {
		return "", ""
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	form, _ := url.ParseQuery(string(bytes.TrimSpace(b)))
	return form.Get("user"), form.Get("pass")
}

// serveLogout drops the session named by the cookie and clears it.
// Logging out without a session still clears the cookie.
func (d *Dispatcher) serveLogout(req *request, w *shardserver.ResponseBuffer, r *http.Request) string {
	req.conn.MarkSendAndClose()
	req.state |= MatchURI | MatchMethod

	removed := false
	if ck, err := r.Cookie(d.cfg.CookieName); err == nil && ck.Value != "" {
		removed = d.sessions.Invalidate(ck.Value)
		d.logger.Info("logout", "session", token.Fingerprint(ck.Value), "removed", removed)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   d.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, loginPage, http.StatusFound)
	if !removed {
		return "noop"
	}
	return "ok"
}
