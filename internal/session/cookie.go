// Package session owns the server side of the cookie contract: the
// auth_token cookie is the durable location of the current token, written
// only on login/registration/refresh and cleared unconditionally on logout.
// Writes are whole-value replacements; a session holds at most one live
// token at a time.
package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie
const CookieName = "auth_token"

// CookiePolicy holds the deployment-dependent cookie attributes
type CookiePolicy struct {
	// SameSite is http.SameSiteLaxMode or http.SameSiteStrictMode
	// depending on deployment context.
	SameSite http.SameSite

	// Secure must be set when serving over TLS.
	Secure bool
}

// PolicyFromString maps the configured same-site mode name to a policy
func PolicyFromString(sameSite string, secure bool) CookiePolicy {
	mode := http.SameSiteLaxMode
	if sameSite == "strict" {
		mode = http.SameSiteStrictMode
	}
	return CookiePolicy{SameSite: mode, Secure: secure}
}

// Write stores the token in the session cookie. Max-Age equals the token
// TTL in seconds, so the cookie and the token expire together.
func (p CookiePolicy) Write(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// Clear destroys the session cookie with Max-Age=0 so no token fragment
// survives in the client.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // serialized as Max-Age=0
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// Read returns the token carried by the session cookie, or "" if absent
func Read(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
